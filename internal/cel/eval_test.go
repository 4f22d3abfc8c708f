package cel

import (
	"testing"
)

var memberVars = []string{"profile_id", "display_name", "role", "score"}

func TestRoleExclusion(t *testing.T) {
	f, err := Compile(`role != "hauler"`, memberVars...)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Match(map[string]any{"role": "miner", "score": int64(10)}) {
		t.Error("expected miner to match")
	}
	if f.Match(map[string]any{"role": "hauler", "score": int64(10)}) {
		t.Error("expected hauler not to match")
	}
}

func TestScoreThreshold(t *testing.T) {
	f, err := Compile(`score >= 5`, memberVars...)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Match(map[string]any{"score": int64(5)}) {
		t.Error("expected 5 >= 5 to match")
	}
	if f.Match(map[string]any{"score": int64(4)}) {
		t.Error("expected 4 >= 5 not to match")
	}
}

func TestStringFunctions(t *testing.T) {
	f, err := Compile(`display_name.startsWith("Alt ") == false && profile_id != ""`, memberVars...)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Match(map[string]any{"display_name": "Main Pilot", "profile_id": "p1"}) {
		t.Error("expected main pilot to match")
	}
	if f.Match(map[string]any{"display_name": "Alt Pilot", "profile_id": "p2"}) {
		t.Error("expected alt pilot not to match")
	}
}

func TestMissingVariableIsFalse(t *testing.T) {
	f, err := Compile(`role == "booster"`, memberVars...)
	if err != nil {
		t.Fatal(err)
	}
	if f.Match(map[string]any{"score": int64(1)}) {
		t.Error("expected false when role is absent")
	}
}

func TestTypeMismatchIsFalse(t *testing.T) {
	f, err := Compile(`score > 100`, memberVars...)
	if err != nil {
		t.Fatal(err)
	}
	if f.Match(map[string]any{"score": "lots"}) {
		t.Error("expected false for string score")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"syntax", `score >`},
		{"undeclared", `rank > 3`},
		{"non bool", `"miner"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.expr, memberVars...); err == nil {
				t.Errorf("Compile(%q) succeeded, want error", tt.expr)
			}
		})
	}
}

func TestExpr(t *testing.T) {
	f, err := Compile(`true`, "role", "role")
	if err != nil {
		t.Fatal(err)
	}
	if f.Expr() != "true" {
		t.Errorf("Expr() = %q", f.Expr())
	}
}
