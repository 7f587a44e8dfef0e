package hlr

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS subscribers (
	imsi TEXT PRIMARY KEY,
	phone TEXT UNIQUE,
	location TEXT
)`

// cache TTLs. Locations move when handsets roam, so they expire faster
// than number assignments.
const (
	phoneCacheTTL    = 10 * time.Minute
	locationCacheTTL = 30 * time.Second
	cacheSweep       = time.Minute
)

// SQLiteDirectory is a Directory backed by the subscriber registry
// sqlite database, with a TTL read cache in front and the compiled-in
// fallback pairs behind it.
type SQLiteDirectory struct {
	db        *sql.DB
	phones    *ttlCache[string, string] // imsi -> phone
	imsis     *ttlCache[string, string] // phone -> imsi
	locations *ttlCache[string, string] // imsi -> host:port
}

// OpenSQLite opens (and if needed initializes) the registry database.
func OpenSQLite(path string) (*SQLiteDirectory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open subscriber registry %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init subscriber registry: %w", err)
	}
	return &SQLiteDirectory{
		db:        db,
		phones:    newTTLCache[string, string](cacheSweep),
		imsis:     newTTLCache[string, string](cacheSweep),
		locations: newTTLCache[string, string](cacheSweep),
	}, nil
}

// Close releases the database and stops the cache sweepers.
func (d *SQLiteDirectory) Close() error {
	d.phones.Close()
	d.imsis.Close()
	d.locations.Close()
	return d.db.Close()
}

func (d *SQLiteDirectory) PhoneToIMSI(phone string) (string, error) {
	if imsi, ok := d.imsis.Get(phone); ok {
		return imsi, nil
	}
	var imsi string
	err := d.db.QueryRow(`SELECT imsi FROM subscribers WHERE phone = ?`, phone).Scan(&imsi)
	if errors.Is(err, sql.ErrNoRows) {
		if imsi, ok := fallbackIMSI(phone); ok {
			slog.Debug("registry miss served from fallback table", "phone", phone)
			return imsi, nil
		}
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("phone lookup: %w", err)
	}
	d.imsis.Set(phone, imsi, phoneCacheTTL)
	return imsi, nil
}

func (d *SQLiteDirectory) IMSIToPhone(imsi string) (string, error) {
	if phone, ok := d.phones.Get(imsi); ok {
		return phone, nil
	}
	var phone sql.NullString
	err := d.db.QueryRow(`SELECT phone FROM subscribers WHERE imsi = ?`, imsi).Scan(&phone)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !phone.Valid) {
		if phone, ok := fallbackPhone(imsi); ok {
			slog.Debug("registry miss served from fallback table", "imsi", imsi)
			return phone, nil
		}
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("imsi lookup: %w", err)
	}
	d.phones.Set(imsi, phone.String, phoneCacheTTL)
	return phone.String, nil
}

func (d *SQLiteDirectory) IMSIToLocation(imsi string) (string, error) {
	if loc, ok := d.locations.Get(imsi); ok {
		return loc, nil
	}
	var loc sql.NullString
	err := d.db.QueryRow(`SELECT location FROM subscribers WHERE imsi = ?`, imsi).Scan(&loc)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && (!loc.Valid || loc.String == "")) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("location lookup: %w", err)
	}
	d.locations.Set(imsi, loc.String, locationCacheTTL)
	return loc.String, nil
}

func (d *SQLiteDirectory) AssignPhone(imsi, phone string) error {
	taken, err := d.PhoneTaken(phone)
	if err != nil {
		return err
	}
	if taken {
		holder, _ := d.PhoneToIMSI(phone)
		if holder != imsi {
			return fmt.Errorf("assign %s: number held by another subscriber", phone)
		}
	}
	_, err = d.db.Exec(
		`INSERT INTO subscribers (imsi, phone) VALUES (?, ?)
		 ON CONFLICT(imsi) DO UPDATE SET phone = excluded.phone`, imsi, phone)
	if err != nil {
		return fmt.Errorf("assign %s to %s: %w", phone, imsi, err)
	}
	// Stale mappings must not outlive a reassignment.
	d.phones.Delete(imsi)
	d.imsis.Delete(phone)
	return nil
}

func (d *SQLiteDirectory) PhoneTaken(phone string) (bool, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM subscribers WHERE phone = ?`, phone).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("phone taken check: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	_, ok := fallbackIMSI(phone)
	return ok, nil
}

// SetLocation records the serving cell for an IMSI. The engine calls it
// when a REGISTER round trip completes.
func (d *SQLiteDirectory) SetLocation(imsi, hostport string) error {
	_, err := d.db.Exec(
		`INSERT INTO subscribers (imsi, location) VALUES (?, ?)
		 ON CONFLICT(imsi) DO UPDATE SET location = excluded.location`, imsi, hostport)
	if err != nil {
		return fmt.Errorf("set location for %s: %w", imsi, err)
	}
	d.locations.Delete(imsi)
	return nil
}
