package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReaderLayers(t *testing.T) {
	defaults := map[string]string{"addr": "localhost:6379", "db": "0"}
	user := map[string]string{"db": "3"}

	r := NewReader("redis", defaults, user)
	if got := r.String("addr"); got != "localhost:6379" {
		t.Errorf("addr = %q", got)
	}
	if got := r.Int("db"); got != 3 {
		t.Errorf("db = %d, want 3", got)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if _, ok := defaults["db"]; !ok || defaults["db"] != "0" {
		t.Error("defaults mutated")
	}
}

func TestReaderBool(t *testing.T) {
	r := NewReader("x", map[string]string{"a": "YES", "b": "0", "c": "maybe"})
	if !r.Bool("a") {
		t.Error("a should be true")
	}
	if r.Bool("b") || r.Bool("missing") {
		t.Error("b and missing should be false")
	}
	if r.Err() != nil {
		t.Fatalf("unexpected error before bad value: %v", r.Err())
	}
	r.Bool("c")
	if r.Err() == nil {
		t.Error("expected error for maybe")
	}
}

func TestReaderDuration(t *testing.T) {
	r := NewReader("x", map[string]string{"dur": "5s", "secs": "10", "zero": "0s"})
	if got := r.Duration("dur"); got != 5*time.Second {
		t.Errorf("dur = %v", got)
	}
	if got := r.Duration("secs"); got != 10*time.Second {
		t.Errorf("secs = %v", got)
	}
	if r.Err() != nil {
		t.Fatal(r.Err())
	}
	r.PositiveDuration("zero")
	if r.Err() == nil {
		t.Error("expected error for zero positive duration")
	}
}

func TestReaderCollectsErrors(t *testing.T) {
	r := NewReader("sqlite", map[string]string{"n": "abc", "d": "soon", "neg": "-1"})
	r.Int("n")
	r.Duration("d")
	r.NonNegativeInt("neg")
	r.Require("path")

	err := r.Err()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, field := range []string{"n", "d", "neg", "path"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Backend != "sqlite" {
		t.Errorf("errors.As ConfigError = %+v", ce)
	}
}

func TestReaderPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	r := NewReader("badger", map[string]string{"path": "~/fleet/data"})
	if got, want := r.Path("path"), filepath.Join(home, "fleet/data"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
	if got := r.Path("missing"); got != "" {
		t.Errorf("Path(missing) = %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	if got := ExpandPath("/a/b/../c"); got != "/a/c" {
		t.Errorf("ExpandPath = %q", got)
	}
}

func TestMerge(t *testing.T) {
	got := Merge(map[string]string{"a": "1", "b": "2"}, nil, map[string]string{"b": "3"})
	if got["a"] != "1" || got["b"] != "3" || len(got) != 2 {
		t.Errorf("Merge = %v", got)
	}
}

func TestConfigErrorFormat(t *testing.T) {
	tests := []struct {
		err  *ConfigError
		want string
	}{
		{&ConfigError{Backend: "s3", Message: "bad"}, "s3: bad"},
		{&ConfigError{Backend: "s3", Field: "bucket", Message: "cannot be empty"}, "s3: bucket: cannot be empty"},
		{&ConfigError{Backend: "s3", Field: "region", Value: "mars", Message: "unknown"}, `s3: region="mars": unknown`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}

	cause := errors.New("refused")
	if err := ConnectError("redis", "addr", cause); !errors.Is(err, cause) {
		t.Error("ConnectError does not unwrap to cause")
	}
}
