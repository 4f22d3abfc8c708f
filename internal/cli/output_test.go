package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/gezibash/arc-fleet/internal/agent"
	"github.com/gezibash/arc-fleet/internal/gossip"
	"github.com/gezibash/arc-fleet/internal/roster"
	"github.com/gezibash/arc-fleet/pkg/group"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"json", FormatJSON},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
		{"text", FormatText},
		{"", FormatText},
		{"unknown", FormatText},
		{"JSON", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewMeta(t *testing.T) {
	m := NewMeta("roster")
	if m.Type != "roster" {
		t.Errorf("Type = %q, want %q", m.Type, "roster")
	}
	if m.Version != "v1" {
		t.Errorf("Version = %q, want %q", m.Version, "v1")
	}
	if m.Generated.IsZero() {
		t.Error("Generated should not be zero")
	}
}

func TestBufferIsNotStyled(t *testing.T) {
	if NewOutput(FormatText, &bytes.Buffer{}).styled {
		t.Error("buffer output should not be styled")
	}
}

func TestTableText(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatText, &buf)
	err := out.Table("groups", "ID", "Name").AddRow("g1", "Belt Crew").AddRow("g2", "Ratters").Render()
	if err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	for _, want := range []string{"ID", "NAME", "g1", "Belt Crew", "Ratters"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}

func TestTableJSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatJSON, &buf)
	if err := out.Table("groups", "Group ID", "Name").AddRow("g1", "Belt Crew").Render(); err != nil {
		t.Fatal(err)
	}

	var env struct {
		Meta Meta                `json:"meta"`
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, buf.String())
	}
	if env.Meta.Type != "groups" {
		t.Errorf("meta.type = %q, want groups", env.Meta.Type)
	}
	if len(env.Data) != 1 || env.Data[0]["group_id"] != "g1" || env.Data[0]["name"] != "Belt Crew" {
		t.Errorf("data = %v", env.Data)
	}
}

func TestKVYAML(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatYAML, &buf)
	if err := out.KV("agent-status").Set("Profile", "p1").Set("Is Leader", true).Render(); err != nil {
		t.Fatal(err)
	}

	var env struct {
		Meta Meta           `yaml:"meta"`
		Data map[string]any `yaml:"data"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, buf.String())
	}
	if env.Meta.Type != "agent-status" {
		t.Errorf("meta.type = %q", env.Meta.Type)
	}
	if env.Data["profile"] != "p1" || env.Data["is_leader"] != true {
		t.Errorf("data = %v", env.Data)
	}
}

func TestKVTextKeepsOrder(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatText, &buf)
	if err := out.KV("x").Set("Zulu", 1).Set("Alpha", 2).Render(); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	if strings.Index(s, "Zulu:") > strings.Index(s, "Alpha:") {
		t.Errorf("pairs reordered:\n%s", s)
	}
}

func TestKVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewOutput(FormatText, &buf).KV("x").Render(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty KV wrote %q", buf.String())
	}
}

func TestResultText(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatText, &buf)
	if err := out.Result("group-created", "Group created").With("id", "g1").With("members", 3).Render(); err != nil {
		t.Fatal(err)
	}
	want := "Group created\n  id:       g1\n  members:  3\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestResultJSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatJSON, &buf)
	if err := out.Result("reload", "Reload sent").With("Group ID", "g1").Render(); err != nil {
		t.Fatal(err)
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Data["message"] != "Reload sent" || env.Data["group_id"] != "g1" {
		t.Errorf("data = %v", env.Data)
	}
}

func TestErrorRender(t *testing.T) {
	t.Run("text with code", func(t *testing.T) {
		var buf bytes.Buffer
		out := NewOutput(FormatText, &buf)
		if err := out.Error("group", errors.New("not found")).WithCode("E404").With("id", "g9").Render(); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(buf.String(), "Error [E404]: not found\n") {
			t.Errorf("got %q", buf.String())
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		out := NewOutput(FormatJSON, &buf)
		if err := out.Error("group", errors.New("boom")).Render(); err != nil {
			t.Fatal(err)
		}
		var env struct {
			Meta Meta           `json:"meta"`
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
			t.Fatal(err)
		}
		if env.Meta.Type != "group-error" {
			t.Errorf("meta.type = %q, want group-error", env.Meta.Type)
		}
		if env.Data["error"] != "boom" {
			t.Errorf("data = %v", env.Data)
		}
		if _, ok := env.Data["code"]; ok {
			t.Error("code present without WithCode")
		}
	})
}

func TestRosterTableMarksLeader(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatJSON, &buf)
	members := []roster.Member{
		{ProfileID: "pa", DisplayName: "Ann", Score: 50, Active: true, Available: true, InHierarchy: true},
		{ProfileID: "pb", DisplayName: "Bea", Score: 80, Active: true},
	}
	if err := out.RosterTable(members, "pa").Render(); err != nil {
		t.Fatal(err)
	}
	var env struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if len(env.Data) != 2 {
		t.Fatalf("rows = %d, want 2", len(env.Data))
	}
	if env.Data[0]["profile"] != "pa *" || env.Data[0]["in_hierarchy"] != "yes" {
		t.Errorf("row 0 = %v", env.Data[0])
	}
	if env.Data[1]["score"] != "80" || env.Data[1]["available"] != "no" {
		t.Errorf("row 1 = %v", env.Data[1])
	}
}

func TestGroupRenderers(t *testing.T) {
	g := &group.Group{ID: "g1", Name: "Belt Crew", Kind: group.KindMining, Members: []string{"pa", "pb"}}

	var buf bytes.Buffer
	out := NewOutput(FormatText, &buf)
	if err := out.GroupsTable([]*group.Group{g}).Render(); err != nil {
		t.Fatal(err)
	}
	if err := out.GroupKV(g).Render(); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	for _, want := range []string{"Belt Crew", g.Kind.String(), "pa, pb"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}

func TestGossipTableMarksSelf(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatText, &buf)
	members := []gossip.MemberInfo{
		{Name: "node-a", Addr: "10.0.0.1:7946", Status: "alive", IsLocal: true},
		{Name: "node-b", Addr: "10.0.0.2:7946", Status: "suspect"},
	}
	if err := out.GossipTable(members).Render(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "node-a (self)") {
		t.Errorf("local node not marked:\n%s", buf.String())
	}
}

func TestStatusKV(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(FormatJSON, &buf)
	s := agent.Status{ProfileID: "pa", GroupName: "Belt Crew", State: "organizing", IsLeader: true}
	if err := out.StatusKV(s).Render(); err != nil {
		t.Fatal(err)
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Data["state"] != "organizing" || env.Data["is_leader"] != true {
		t.Errorf("data = %v", env.Data)
	}
}
