package redis

import "testing"

func TestGlobEscape(t *testing.T) {
	tests := []struct{ in, want string }{
		{"arc-fleet:store:groups/", `arc\-fleet:store:groups/`},
		{"a*b?c[d]", `a\*b\?c\[d\]`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := globEscape(tt.in); got != tt.want {
			t.Errorf("globEscape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
