package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-fleet/internal/scheduler"
)

func TestDefaultDataDir(t *testing.T) {
	dataDir := DefaultDataDir()
	if !strings.HasSuffix(dataDir, ".arc-fleet") {
		t.Errorf("DefaultDataDir() = %q, want suffix .arc-fleet", dataDir)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"agent.tick_interval", cfg.Agent.TickInterval, 5 * time.Second},
		{"agent.inbox_size", cfg.Agent.InboxSize, 256},
		{"store.backend", cfg.Store.Backend, "badger"},
		{"hierarchy.backend", cfg.Hierarchy.Backend, HierarchyMemory},
		{"gossip.bind_addr", cfg.Gossip.BindAddr, "0.0.0.0"},
		{"gossip.port", cfg.Gossip.Port, 7946},
		{"observability.log_level", cfg.Observability.LogLevel, "info"},
		{"observability.log_format", cfg.Observability.LogFormat, "text"},
		{"observability.service_name", cfg.Observability.ServiceName, "arc-fleet"},
		{"admin.addr", cfg.Admin.Addr, ":50061"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ARC_FLEET_AGENT_PROFILE", "pilot-7")
	t.Setenv("ARC_FLEET_AGENT_TICK_INTERVAL", "750ms")
	t.Setenv("ARC_FLEET_HIERARCHY_BACKEND", "redis")
	t.Setenv("ARC_FLEET_DATA_DIR", "/custom/data/dir")

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.Profile != "pilot-7" {
		t.Errorf("Agent.Profile = %q, want pilot-7", cfg.Agent.Profile)
	}
	if cfg.Agent.TickInterval != 750*time.Millisecond {
		t.Errorf("Agent.TickInterval = %s, want 750ms", cfg.Agent.TickInterval)
	}
	if cfg.Hierarchy.Backend != HierarchyRedis {
		t.Errorf("Hierarchy.Backend = %q, want redis", cfg.Hierarchy.Backend)
	}
	if cfg.DataDir != "/custom/data/dir" {
		t.Errorf("DataDir = %q, want /custom/data/dir", cfg.DataDir)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "arc-fleet.yaml")
	content := `
data_dir: /tmp/fleet-test
agent:
  profile: pilot-1
  tick_interval: 2s
  skills:
    leadership: 5
    mining foreman: 4
store:
  backend: sqlite
  config:
    path: /tmp/groups.db
hierarchy:
  backend: redis
  identity: Ann
  redis:
    addr: localhost:6380
gossip:
  port: 7950
  seeds:
    - 10.0.0.1:7946
    - 10.0.0.2:7946
election:
  policy: role != "hauler"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(viper.New(), configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Agent.Profile != "pilot-1" || cfg.Agent.TickInterval != 2*time.Second {
		t.Errorf("Agent = %+v", cfg.Agent)
	}
	if cfg.Agent.Skills["leadership"] != 5 || cfg.Agent.Skills["mining foreman"] != 4 {
		t.Errorf("Agent.Skills = %v", cfg.Agent.Skills)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Config["path"] != "/tmp/groups.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Identity() != "Ann" || cfg.Hierarchy.Redis["addr"] != "localhost:6380" {
		t.Errorf("Hierarchy = %+v", cfg.Hierarchy)
	}
	if cfg.Gossip.Port != 7950 || len(cfg.Gossip.Seeds) != 2 {
		t.Errorf("Gossip = %+v", cfg.Gossip)
	}
	if cfg.Election.Policy != `role != "hauler"` {
		t.Errorf("Election.Policy = %q", cfg.Election.Policy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	if _, err := Load(viper.New(), "/nonexistent/path/to/arc-fleet.yaml"); err == nil {
		t.Error("Load with explicit missing config file should error")
	}
}

func TestBindFlags(t *testing.T) {
	root := &cobra.Command{Use: "arc-fleet"}
	start := &cobra.Command{Use: "start"}
	root.AddCommand(start)
	v := viper.New()
	BindCommonFlags(root, v)
	BindStartFlags(start, v)

	err := start.ParseFlags([]string{
		"--profile", "pilot-9",
		"--hierarchy", "redis",
		"--tick", "3s",
		"--seeds", "a:1,b:2",
		"--log-level", "debug",
		"--reflection",
	})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"agent.profile", "pilot-9"},
		{"hierarchy.backend", "redis"},
		{"agent.tick_interval", "3s"},
		{"observability.log_level", "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := v.GetString(tt.key); got != tt.want {
				t.Errorf("v.GetString(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
	if got := v.GetStringSlice("gossip.seeds"); len(got) != 2 || got[1] != "b:2" {
		t.Errorf("gossip.seeds = %v", got)
	}
	if !v.GetBool("admin.enable_reflection") {
		t.Error("admin.enable_reflection = false, want true")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Agent:     AgentConfig{Profile: "p1"},
		Store:     StoreConfig{Backend: "badger"},
		Hierarchy: HierarchyConfig{Backend: HierarchyMemory},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	bad := valid
	bad.Agent.Profile = ""
	bad.Agent.Skills = map[string]int{"Leadership": 9}
	bad.Hierarchy.Backend = "zookeeper"
	bad.Gossip.Port = 70000
	err := bad.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want errors")
	}
	for _, want := range []string{"agent.profile", "agent.skills.Leadership", "hierarchy.backend", "gossip.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestIdentityDefaultsToProfile(t *testing.T) {
	cfg := Config{Agent: AgentConfig{Profile: "p1"}}
	if cfg.Identity() != "p1" {
		t.Errorf("Identity() = %q, want p1", cfg.Identity())
	}
}

func TestStoreBackendConfigPath(t *testing.T) {
	cfg := Config{DataDir: "/data", Store: StoreConfig{Backend: "sqlite"}}
	if got := cfg.StoreBackendConfig()["path"]; got != filepath.Join("/data", "groups.db") {
		t.Errorf("path = %q", got)
	}
	cfg.Store.Config = map[string]string{"path": "/elsewhere"}
	if got := cfg.StoreBackendConfig()["path"]; got != "/elsewhere" {
		t.Errorf("explicit path overridden: %q", got)
	}
}

func TestInterval(t *testing.T) {
	if got := (AgentConfig{}).Interval(); got != scheduler.DefaultInterval {
		t.Errorf("Interval() = %s, want %s", got, scheduler.DefaultInterval)
	}
	if got := (AgentConfig{TickInterval: time.Second}).Interval(); got != time.Second {
		t.Errorf("Interval() = %s, want 1s", got)
	}
}
