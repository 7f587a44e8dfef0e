// Package config holds the smqueue configuration: a flat table of dotted
// keys with defaults, optionally overlaid from a YAML file, safe for
// concurrent read and live update.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Key describes one configuration key: its default, whether an empty value
// is acceptable, and the operator-facing documentation used by the
// --gensql and --gentex emitters.
type Key struct {
	Name        string
	Default     string
	Units       string
	Optional    bool
	Description string
}

// Config is the live configuration table.
type Config struct {
	mu     sync.RWMutex
	values map[string]string
	keys   map[string]Key
}

// New returns a Config seeded with the built-in defaults.
func New() *Config {
	c := &Config{
		values: make(map[string]string, len(Keys)),
		keys:   make(map[string]Key, len(Keys)),
	}
	for _, k := range Keys {
		c.keys[k.Name] = k
		if k.Default != "" || !k.Optional {
			c.values[k.Name] = k.Default
		}
	}
	return c
}

// Load builds a Config from defaults plus the YAML file at path.
// A missing file is not an error; the defaults stand.
func Load(path string) (*Config, error) {
	c := New()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	flat := make(map[string]string)
	flatten("", raw, flat)
	c.mu.Lock()
	for k, v := range flat {
		c.values[k] = v
	}
	c.mu.Unlock()
	return c, nil
}

// flatten turns nested YAML maps into dotted keys, so both
//
//	SIP.myPort: 5063
//
// and
//
//	SIP:
//	  myPort: 5063
//
// name the same key.
func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(name, t, out)
		case nil:
			out[name] = ""
		default:
			out[name] = fmt.Sprint(t)
		}
	}
}

// GetStr returns the value for name, or "" if unset.
func (c *Config) GetStr(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[name]
}

// GetInt returns the value for name as an int, or 0 if unset or malformed.
func (c *Config) GetInt(name string) int {
	s := c.GetStr(name)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// GetBool treats "1", "true", "yes" and "on" as true.
func (c *Config) GetBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(c.GetStr(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Defined reports whether name has a non-empty value. Optional keys with
// no value configured are not defined.
func (c *Config) Defined(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[name]
	return ok && v != ""
}

// Set updates a key at runtime.
func (c *Config) Set(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = value
}

// Unset removes a key's value, reverting optional keys to disabled.
func (c *Config) Unset(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, name)
}

// Describe returns the key table entry for name.
func (c *Config) Describe(name string) (Key, bool) {
	k, ok := c.keys[name]
	return k, ok
}
