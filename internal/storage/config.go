package storage

import (
	"errors"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Reader reads typed values from layered string maps. Later layers override
// earlier ones, so callers pass backend defaults first and user settings
// last. Parse failures are collected and reported together by Err.
type Reader struct {
	backend string
	values  map[string]string
	errs    []error
}

// NewReader merges layers for the named backend.
func NewReader(backend string, layers ...map[string]string) *Reader {
	return &Reader{backend: backend, values: Merge(layers...)}
}

// Values returns the merged configuration.
func (r *Reader) Values() map[string]string { return maps.Clone(r.values) }

func (r *Reader) fail(key, msg string, cause error) {
	r.errs = append(r.errs, &ConfigError{
		Backend: r.backend,
		Field:   key,
		Value:   r.values[key],
		Message: msg,
		Cause:   cause,
	})
}

// String returns the value for key, or "".
func (r *Reader) String(key string) string { return r.values[key] }

// Require returns the value for key and records an error when it is empty.
func (r *Reader) Require(key string) string {
	v := strings.TrimSpace(r.values[key])
	if v == "" {
		r.fail(key, "cannot be empty", nil)
	}
	return v
}

// Bool accepts true/false, 1/0 and yes/no, case-insensitively. Empty is
// false.
func (r *Reader) Bool(key string) bool {
	switch strings.ToLower(r.values[key]) {
	case "", "false", "0", "no":
		return false
	case "true", "1", "yes":
		return true
	default:
		r.fail(key, "must be a boolean (true/false, 1/0, yes/no)", nil)
		return false
	}
}

// Int parses a base-10 integer. Empty is zero.
func (r *Reader) Int(key string) int {
	v := r.values[key]
	if v == "" {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, "must be an integer", err)
	}
	return i
}

// NonNegativeInt is Int with a lower bound of zero.
func (r *Reader) NonNegativeInt(key string) int {
	i := r.Int(key)
	if i < 0 {
		r.fail(key, "must be non-negative", nil)
		return 0
	}
	return i
}

// Duration accepts Go duration strings or plain integers as seconds. Empty
// is zero.
func (r *Reader) Duration(key string) time.Duration {
	v := r.values[key]
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	r.fail(key, "must be a duration (e.g., '5s', '1m30s') or integer seconds", nil)
	return 0
}

// PositiveDuration is Duration that must be greater than zero.
func (r *Reader) PositiveDuration(key string) time.Duration {
	d := r.Duration(key)
	if d <= 0 {
		r.fail(key, "must be positive", nil)
	}
	return d
}

// Path returns the value for key with ~ expanded.
func (r *Reader) Path(key string) string {
	v := r.values[key]
	if v == "" {
		return ""
	}
	return ExpandPath(v)
}

// Err joins every failure recorded so far.
func (r *Reader) Err() error { return errors.Join(r.errs...) }

// ExpandPath expands a leading ~/ to the user's home directory and cleans
// the path.
func ExpandPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, rest)
	}
	return filepath.Clean(path)
}

// Merge layers maps left to right into a new map.
func Merge(layers ...map[string]string) map[string]string {
	n := 0
	for _, l := range layers {
		n += len(l)
	}
	out := make(map[string]string, n)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}
