package hlr

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDirectory(t *testing.T) *SQLiteDirectory {
	t.Helper()
	d, err := OpenSQLite(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestAssignAndLookup(t *testing.T) {
	d := openTestDirectory(t)

	require.NoError(t, d.AssignPhone("IMSI001010000000001", "7074700800"))

	imsi, err := d.PhoneToIMSI("7074700800")
	require.NoError(t, err)
	assert.Equal(t, "IMSI001010000000001", imsi)

	phone, err := d.IMSIToPhone("IMSI001010000000001")
	require.NoError(t, err)
	assert.Equal(t, "7074700800", phone)
}

func TestAssignRejectsHeldNumber(t *testing.T) {
	d := openTestDirectory(t)

	require.NoError(t, d.AssignPhone("IMSI001010000000001", "7074700800"))
	err := d.AssignPhone("IMSI001010000000002", "7074700800")
	assert.Error(t, err)

	// Re-assigning the same number to its holder is a no-op, not an error.
	assert.NoError(t, d.AssignPhone("IMSI001010000000001", "7074700800"))
}

func TestReassignInvalidatesOldMapping(t *testing.T) {
	d := openTestDirectory(t)

	require.NoError(t, d.AssignPhone("IMSI001010000000001", "7074700800"))
	require.NoError(t, d.AssignPhone("IMSI001010000000001", "7074700801"))

	phone, err := d.IMSIToPhone("IMSI001010000000001")
	require.NoError(t, err)
	assert.Equal(t, "7074700801", phone)

	_, err = d.PhoneToIMSI("7074700800")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPhoneTaken(t *testing.T) {
	d := openTestDirectory(t)

	taken, err := d.PhoneTaken("7074700800")
	require.NoError(t, err)
	assert.False(t, taken)

	require.NoError(t, d.AssignPhone("IMSI001010000000001", "7074700800"))
	taken, err = d.PhoneTaken("7074700800")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestSetLocation(t *testing.T) {
	d := openTestDirectory(t)

	_, err := d.IMSIToLocation("IMSI001010000000001")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, d.SetLocation("IMSI001010000000001", "10.1.2.3:5062"))
	loc, err := d.IMSIToLocation("IMSI001010000000001")
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3:5062", loc)

	// Location updates do not clobber an assigned number.
	require.NoError(t, d.AssignPhone("IMSI001010000000002", "7074700801"))
	require.NoError(t, d.SetLocation("IMSI001010000000002", "10.1.2.4:5062"))
	phone, err := d.IMSIToPhone("IMSI001010000000002")
	require.NoError(t, err)
	assert.Equal(t, "7074700801", phone)
}

func TestFallbackPairsServeRegistryMisses(t *testing.T) {
	d := openTestDirectory(t)

	imsi, err := d.PhoneToIMSI("+17074700741")
	require.NoError(t, err)
	assert.Equal(t, "IMSI666410186585295", imsi)

	phone, err := d.IMSIToPhone("IMSI777100223456161")
	require.NoError(t, err)
	assert.Equal(t, "+17074700746", phone)

	taken, err := d.PhoneTaken("+17074700746")
	require.NoError(t, err)
	assert.True(t, taken)
}
