package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, 5063, c.GetInt("SIP.myPort"))
	assert.Equal(t, "127.0.0.1", c.GetStr("SIP.myIP"))
	assert.Equal(t, "101", c.GetStr("SC.Register.Code"))
	assert.Equal(t, 2160, c.GetInt("SMS.MaxRetries"))

	// Optional keys with no default are not defined.
	assert.False(t, c.Defined("SIP.GlobalRelay.IP"))
	assert.True(t, c.Defined("SIP.Timeout.MessageBounce"))
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smqueue.yml")
	yml := strings.Join([]string{
		"SIP:",
		"  myPort: 5999",
		"  GlobalRelay:",
		"    IP: 10.0.0.9",
		"Log.Level: debug",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5999, c.GetInt("SIP.myPort"))
	assert.Equal(t, "10.0.0.9", c.GetStr("SIP.GlobalRelay.IP"))
	assert.True(t, c.Defined("SIP.GlobalRelay.IP"))
	assert.Equal(t, "debug", c.GetStr("Log.Level"))

	// Untouched keys keep their defaults.
	assert.Equal(t, "127.0.0.1", c.GetStr("SIP.myIP"))
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, 5063, c.GetInt("SIP.myPort"))
}

func TestSetUnset(t *testing.T) {
	c := New()
	c.Set("SMS.RateLimit", "5")
	assert.Equal(t, 5, c.GetInt("SMS.RateLimit"))
	c.Unset("SMS.RateLimit")
	assert.False(t, c.Defined("SMS.RateLimit"))
}

func TestGetBool(t *testing.T) {
	c := New()
	c.Set("Debug.print_as_we_validate", "yes")
	assert.True(t, c.GetBool("Debug.print_as_we_validate"))
	c.Set("Debug.print_as_we_validate", "0")
	assert.False(t, c.GetBool("Debug.print_as_we_validate"))
}

func TestGenSQL(t *testing.T) {
	var b strings.Builder
	require.NoError(t, GenSQL(&b, "smqueued", "6.0"))
	out := b.String()
	assert.Contains(t, out, "CREATE TABLE")
	assert.Contains(t, out, "SIP.myPort")
	assert.Contains(t, out, "SC.Register.Code")
}

func TestGenTex(t *testing.T) {
	var b strings.Builder
	require.NoError(t, GenTex(&b, "smqueued", "6.0"))
	out := b.String()
	assert.Contains(t, out, "longtable")
	assert.Contains(t, out, "SIP.myPort")
}
