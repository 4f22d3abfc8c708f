// Package config loads the fleet agent configuration from flags,
// ARC_FLEET_* environment variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gezibash/arc-fleet/internal/scheduler"
)

// Config is the full agent configuration.
type Config struct {
	DataDir       string              `mapstructure:"data_dir"`
	Agent         AgentConfig         `mapstructure:"agent"`
	Store         StoreConfig         `mapstructure:"store"`
	Hierarchy     HierarchyConfig     `mapstructure:"hierarchy"`
	Gossip        GossipConfig        `mapstructure:"gossip"`
	Election      ElectionConfig      `mapstructure:"election"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Admin         AdminConfig         `mapstructure:"admin"`
}

// AgentConfig identifies the agent and tunes its loop.
type AgentConfig struct {
	Profile      string         `mapstructure:"profile"`
	TickInterval time.Duration  `mapstructure:"tick_interval"`
	InboxSize    int            `mapstructure:"inbox_size"`
	Skills       map[string]int `mapstructure:"skills"`
}

// StoreConfig selects the configuration store backend.
type StoreConfig struct {
	Backend string            `mapstructure:"backend"`
	Config  map[string]string `mapstructure:"config"`
}

// HierarchyConfig selects the external hierarchy implementation.
type HierarchyConfig struct {
	Backend  string            `mapstructure:"backend"`
	Identity string            `mapstructure:"identity"`
	Redis    map[string]string `mapstructure:"redis"`
}

// GossipConfig configures the memberlist transport.
type GossipConfig struct {
	NodeName      string   `mapstructure:"node_name"`
	BindAddr      string   `mapstructure:"bind_addr"`
	Port          int      `mapstructure:"port"`
	AdvertiseAddr string   `mapstructure:"advertise_addr"`
	AdvertisePort int      `mapstructure:"advertise_port"`
	Seeds         []string `mapstructure:"seeds"`
}

// ElectionConfig holds the optional eligibility policy.
type ElectionConfig struct {
	Policy string `mapstructure:"policy"`
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// AdminConfig configures the gRPC admin server.
type AdminConfig struct {
	Addr             string `mapstructure:"addr"`
	EnableReflection bool   `mapstructure:"enable_reflection"`
}

// Hierarchy backends.
const (
	HierarchyMemory = "memory"
	HierarchyRedis  = "redis"
)

// DefaultDataDir returns ~/.arc-fleet, or .arc-fleet when there is no home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arc-fleet"
	}
	return filepath.Join(home, ".arc-fleet")
}

// Identity is the name the external hierarchy knows the agent by. It
// defaults to the profile ID.
func (c Config) Identity() string {
	if c.Hierarchy.Identity != "" {
		return c.Hierarchy.Identity
	}
	return c.Agent.Profile
}

// StoreBackendConfig returns the store backend config with a path under
// DataDir filled in for file-backed backends.
func (c Config) StoreBackendConfig() map[string]string {
	out := make(map[string]string, len(c.Store.Config)+1)
	for k, v := range c.Store.Config {
		out[k] = v
	}
	if _, ok := out["path"]; !ok && c.DataDir != "" {
		switch c.Store.Backend {
		case "badger":
			out["path"] = filepath.Join(c.DataDir, "groups")
		case "sqlite":
			out["path"] = filepath.Join(c.DataDir, "groups.db")
		}
	}
	return out
}

// Validate reports every problem that would stop an agent from starting.
func (c Config) Validate() error {
	var errs []error
	if c.Agent.Profile == "" {
		errs = append(errs, errors.New("agent.profile is required"))
	}
	if c.Agent.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("agent.tick_interval must not be negative, got %s", c.Agent.TickInterval))
	}
	if c.Agent.InboxSize < 0 {
		errs = append(errs, fmt.Errorf("agent.inbox_size must not be negative, got %d", c.Agent.InboxSize))
	}
	for name, level := range c.Agent.Skills {
		if level < 0 || level > 5 {
			errs = append(errs, fmt.Errorf("agent.skills.%s must be between 0 and 5, got %d", name, level))
		}
	}
	switch c.Hierarchy.Backend {
	case HierarchyMemory, HierarchyRedis:
	default:
		errs = append(errs, fmt.Errorf("hierarchy.backend must be %q or %q, got %q", HierarchyMemory, HierarchyRedis, c.Hierarchy.Backend))
	}
	if c.Store.Backend == "" {
		errs = append(errs, errors.New("store.backend is required"))
	}
	if c.Gossip.Port < 0 || c.Gossip.Port > 65535 {
		errs = append(errs, fmt.Errorf("gossip.port out of range: %d", c.Gossip.Port))
	}
	return errors.Join(errs...)
}

// Interval returns the tick interval, falling back to the scheduler
// default.
func (c AgentConfig) Interval() time.Duration {
	if c.TickInterval <= 0 {
		return scheduler.DefaultInterval
	}
	return c.TickInterval
}
