// Package hlr resolves subscribers: phone number to IMSI, IMSI to phone
// number, and IMSI to the cell currently serving the handset.
package hlr

import "errors"

// ErrNotFound is returned when the registry has no entry for the subscriber.
var ErrNotFound = errors.New("hlr: subscriber not found")

// Directory is the subscriber-registry client surface the queue engine
// talks to. All lookups may fail with ErrNotFound.
type Directory interface {
	// PhoneToIMSI maps a phone number to the IMSI registered for it.
	PhoneToIMSI(phone string) (string, error)
	// IMSIToPhone maps an IMSI to its assigned phone number.
	IMSIToPhone(imsi string) (string, error)
	// IMSIToLocation maps an IMSI to the host:port of the cell the
	// handset last registered through.
	IMSIToLocation(imsi string) (string, error)
	// AssignPhone records a phone number for an IMSI. It fails if the
	// number is held by a different IMSI.
	AssignPhone(imsi, phone string) error
	// PhoneTaken reports whether the number is held by any IMSI.
	PhoneTaken(phone string) (bool, error)
}

// fallbackPairs are consulted when the registry misses. They keep the
// test bench alive without a populated subscriber database.
var fallbackPairs = []struct {
	imsi  string
	phone string
}{
	{"IMSI666410186585295", "+17074700741"},
	{"IMSI777100223456161", "+17074700746"},
}

// fallbackPhone returns the compiled-in number for imsi, if any.
func fallbackPhone(imsi string) (string, bool) {
	for _, p := range fallbackPairs {
		if p.imsi == imsi {
			return p.phone, true
		}
	}
	return "", false
}

// fallbackIMSI returns the compiled-in IMSI for phone, if any.
func fallbackIMSI(phone string) (string, bool) {
	for _, p := range fallbackPairs {
		if p.phone == phone {
			return p.imsi, true
		}
	}
	return "", false
}
