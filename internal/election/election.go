// Package election picks a group leader from a roster snapshot.
//
// The winner is the eligible member with the highest score. Equal scores
// are broken by the lexicographically smaller profile ID, so every agent
// holding the same roster elects the same leader.
package election

import (
	"fmt"

	"github.com/gezibash/arc-fleet/internal/cel"
	"github.com/gezibash/arc-fleet/internal/roster"
)

// PolicyVars are the variables an eligibility policy may reference.
var PolicyVars = []string{"profile_id", "display_name", "role", "score"}

// Engine elects leaders. The zero value and a nil *Engine apply no policy
// beyond the roster's own eligibility rule.
type Engine struct {
	policy *cel.Filter
}

// New returns an engine that additionally requires candidates to satisfy
// the CEL expression policy. An empty policy admits every candidate.
func New(policy string) (*Engine, error) {
	if policy == "" {
		return &Engine{}, nil
	}
	f, err := cel.Compile(policy, PolicyVars...)
	if err != nil {
		return nil, fmt.Errorf("election policy: %w", err)
	}
	return &Engine{policy: f}, nil
}

// Policy returns the configured policy expression, or "".
func (e *Engine) Policy() string {
	if e == nil || e.policy == nil {
		return ""
	}
	return e.policy.Expr()
}

// Eligible reports whether m may be elected.
func (e *Engine) Eligible(m roster.Member) bool {
	if !m.Eligible() {
		return false
	}
	if e == nil || e.policy == nil {
		return true
	}
	return e.policy.Match(map[string]any{
		"profile_id":   m.ProfileID,
		"display_name": m.DisplayName,
		"role":         m.Role.String(),
		"score":        int64(m.Score),
	})
}

// Elect returns the desired leader among members, or false when no member
// is eligible.
func (e *Engine) Elect(members []roster.Member) (roster.Member, bool) {
	var (
		best  roster.Member
		found bool
	)
	for _, m := range members {
		if !e.Eligible(m) {
			continue
		}
		if !found || better(m, best) {
			best, found = m, true
		}
	}
	return best, found
}

func better(a, b roster.Member) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ProfileID < b.ProfileID
}

// Elect runs an election with no additional policy.
func Elect(members []roster.Member) (roster.Member, bool) {
	return (*Engine)(nil).Elect(members)
}
