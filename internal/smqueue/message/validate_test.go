package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sipText joins header lines and a body into wire form with CRLF endings.
func sipText(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func basicMessage() []byte {
	return sipText(
		"MESSAGE sip:+17074700746@127.0.0.1 SIP/2.0",
		"Via: SIP/2.0/UDP 127.0.0.1:5062;branch=z9hG4bKabc123",
		"Max-Forwards: 70",
		`From: "IMSI666410186585295" <sip:IMSI666410186585295@127.0.0.1>;tag=d3f9`,
		"To: <sip:+17074700746@127.0.0.1>",
		"Call-ID: 5f3a7c@127.0.0.1",
		"CSeq: 1 MESSAGE",
		"Content-Type: text/plain",
		"Content-Length: 5",
		"",
		"hello",
	)
}

func newValidator() *Validator {
	return &Validator{MyIP: "127.0.0.1"}
}

func TestValidateAcceptsMessage(t *testing.T) {
	p := NewFromRaw(basicMessage(), "127.0.0.1:5062")
	code := newValidator().Validate(p, false)
	require.Equal(t, 0, code)
	assert.Equal(t, "1--d3f9", p.Tag)
	assert.Equal(t, byte('1'), p.TagHash)
	assert.False(t, p.IsResponse())
}

func TestValidateAcceptsRegister(t *testing.T) {
	raw := sipText(
		"REGISTER sip:127.0.0.1:5060 SIP/2.0",
		"Via: SIP/2.0/UDP 127.0.0.1:5063;branch=z9hG4bKreg1",
		"Max-Forwards: 70",
		"From: <sip:IMSI666410186585295@127.0.0.1>;tag=r1",
		"To: <sip:IMSI666410186585295@127.0.0.1>",
		"Call-ID: reg1@127.0.0.1",
		"CSeq: 1 REGISTER",
		"Content-Length: 0",
		"",
	)
	p := NewFromRaw(raw, "127.0.0.1:5063")
	assert.Equal(t, 0, newValidator().Validate(p, false))
}

func TestValidateRejectsUnknownMethod(t *testing.T) {
	raw := sipText(
		"INFO sip:+17074700746@127.0.0.1 SIP/2.0",
		"Via: SIP/2.0/UDP 127.0.0.1:5062;branch=z9hG4bKx",
		"From: <sip:+17074700741@127.0.0.1>;tag=a",
		"To: <sip:+17074700746@127.0.0.1>",
		"Call-ID: i1@127.0.0.1",
		"CSeq: 1 INFO",
		"Content-Length: 0",
		"",
	)
	p := NewFromRaw(raw, "127.0.0.1:5062")
	assert.Equal(t, 405, newValidator().Validate(p, false))
}

func TestValidateRejectsNonSIPScheme(t *testing.T) {
	raw := sipText(
		"MESSAGE sips:+17074700746@127.0.0.1 SIP/2.0",
		"Via: SIP/2.0/UDP 127.0.0.1:5062;branch=z9hG4bKx",
		"From: <sip:+17074700741@127.0.0.1>;tag=a",
		"To: <sip:+17074700746@127.0.0.1>",
		"Call-ID: s1@127.0.0.1",
		"CSeq: 1 MESSAGE",
		"Content-Type: text/plain",
		"Content-Length: 2",
		"",
		"hi",
	)
	p := NewFromRaw(raw, "127.0.0.1:5062")
	assert.Equal(t, 416, newValidator().Validate(p, false))
}

func TestValidateRejectsBadContentType(t *testing.T) {
	raw := sipText(
		"MESSAGE sip:+17074700746@127.0.0.1 SIP/2.0",
		"Via: SIP/2.0/UDP 127.0.0.1:5062;branch=z9hG4bKx",
		"From: <sip:+17074700741@127.0.0.1>;tag=a",
		"To: <sip:+17074700746@127.0.0.1>",
		"Call-ID: c1@127.0.0.1",
		"CSeq: 1 MESSAGE",
		"Content-Type: application/json",
		"Content-Length: 2",
		"",
		"{}",
	)
	p := NewFromRaw(raw, "127.0.0.1:5062")
	assert.Equal(t, 415, newValidator().Validate(p, false))
}

func TestValidateRejectsCSeqMethodMismatch(t *testing.T) {
	raw := sipText(
		"MESSAGE sip:+17074700746@127.0.0.1 SIP/2.0",
		"Via: SIP/2.0/UDP 127.0.0.1:5062;branch=z9hG4bKx",
		"From: <sip:+17074700741@127.0.0.1>;tag=a",
		"To: <sip:+17074700746@127.0.0.1>",
		"Call-ID: m1@127.0.0.1",
		"CSeq: 1 REGISTER",
		"Content-Type: text/plain",
		"Content-Length: 2",
		"",
		"hi",
	)
	p := NewFromRaw(raw, "127.0.0.1:5062")
	assert.Equal(t, 400, newValidator().Validate(p, false))
}

func TestValidateRejectsGarbage(t *testing.T) {
	p := NewFromRaw([]byte("not a sip message at all\r\n\r\n"), "127.0.0.1:5062")
	assert.Equal(t, 400, newValidator().Validate(p, false))
}

func TestValidateAcceptsResponse(t *testing.T) {
	raw := sipText(
		"SIP/2.0 200 OK",
		"Via: SIP/2.0/UDP 127.0.0.1:5063;branch=z9hG4bKabc123",
		"From: <sip:+17074700741@127.0.0.1>;tag=d3f9",
		"To: <sip:+17074700746@127.0.0.1>;tag=resp1",
		"Call-ID: 5f3a7c@127.0.0.1",
		"CSeq: 1 MESSAGE",
		"Content-Length: 0",
		"",
	)
	p := NewFromRaw(raw, "127.0.0.1:5062")
	require.Equal(t, 0, newValidator().Validate(p, false))
	assert.True(t, p.IsResponse())
	assert.Equal(t, "1--d3f9", p.Tag)
}

func TestValidateTrimsBodyToContentLength(t *testing.T) {
	// A response datagram terminated with an extra CRLF: the parser sees
	// the stray bytes as body, but the declared length is authoritative.
	resp := sipText(
		"SIP/2.0 200 OK",
		"Via: SIP/2.0/UDP 127.0.0.1:5063;branch=z9hG4bKabc123",
		"From: <sip:+17074700741@127.0.0.1>;tag=d3f9",
		"To: <sip:+17074700746@127.0.0.1>;tag=resp1",
		"Call-ID: tb1@127.0.0.1",
		"CSeq: 1 MESSAGE",
		"Content-Length: 0",
		"",
		"",
	)
	p := NewFromRaw(resp, "127.0.0.1:5062")
	require.Equal(t, 0, newValidator().Validate(p, false))
	assert.Empty(t, p.SIP().Body())

	// MESSAGE bodies shed the datagram's trailing CRLF the same way.
	p2 := NewFromRaw(basicMessage(), "127.0.0.1:5062")
	require.Equal(t, 0, newValidator().Validate(p2, false))
	assert.Equal(t, "hello", string(p2.SIP().Body()))
}

func TestValidateRejectsResponseWithBody(t *testing.T) {
	raw := sipText(
		"SIP/2.0 200 OK",
		"Via: SIP/2.0/UDP 127.0.0.1:5063;branch=z9hG4bKabc123",
		"From: <sip:+17074700741@127.0.0.1>;tag=d3f9",
		"To: <sip:+17074700746@127.0.0.1>",
		"Call-ID: rb@127.0.0.1",
		"CSeq: 1 MESSAGE",
		"Content-Length: 4",
		"",
		"body",
	)
	p := NewFromRaw(raw, "127.0.0.1:5062")
	assert.Equal(t, 400, newValidator().Validate(p, false))
}

func TestValidateEarlyCheckRejectsUnknownDestFromRelay(t *testing.T) {
	v := &Validator{
		MyIP:      "127.0.0.1",
		RelayHost: "10.0.0.9",
		RelayPort: "5060",
		Deliverable: func(user string) bool {
			return user == "+17074700746"
		},
	}

	p := NewFromRaw(basicMessage(), "10.0.0.9:5060")
	require.Equal(t, 0, v.Validate(p, true))
	assert.True(t, p.FromRelay)

	// Same relay, a destination the directory cannot resolve.
	raw := basicMessage()
	raw = []byte(strings.ReplaceAll(string(raw), "+17074700746", "+19995550000"))
	p2 := NewFromRaw(raw, "10.0.0.9:5060")
	assert.Equal(t, 404, v.Validate(p2, true))
	assert.False(t, p2.FromRelay)
}

func TestValidateEarlyCheckUsesRequestURIUser(t *testing.T) {
	// Only the request-URI user counts for deliverability. A message for
	// a short code keeps whatever the handset put in To.
	v := &Validator{
		MyIP:        "127.0.0.1",
		RelayHost:   "10.0.0.9",
		RelayPort:   "5060",
		Deliverable: func(user string) bool { return user == "411" },
	}
	raw := sipText(
		"MESSAGE sip:411@127.0.0.1 SIP/2.0",
		"Via: SIP/2.0/UDP 127.0.0.1:5062;branch=z9hG4bKsc1",
		"Max-Forwards: 70",
		`From: "IMSI666410186585295" <sip:IMSI666410186585295@127.0.0.1>;tag=s1`,
		"To: <sip:+17074700746@127.0.0.1>",
		"Call-ID: sc1@127.0.0.1",
		"CSeq: 1 MESSAGE",
		"Content-Type: text/plain",
		"Content-Length: 4",
		"",
		"info",
	)
	p := NewFromRaw(raw, "10.0.0.9:5060")
	require.Equal(t, 0, v.Validate(p, true))
	assert.True(t, p.FromRelay)
}

func TestValidateSkipsEarlyCheckWhenDisallowed(t *testing.T) {
	v := &Validator{
		MyIP:        "127.0.0.1",
		RelayHost:   "10.0.0.9",
		RelayPort:   "5060",
		Deliverable: func(string) bool { return false },
	}
	p := NewFromRaw(basicMessage(), "10.0.0.9:5060")
	assert.Equal(t, 0, v.Validate(p, false))
	assert.False(t, p.FromRelay)
}
