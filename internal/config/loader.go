package config

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ARC_FLEET_AGENT_PROFILE.
const EnvPrefix = "ARC_FLEET"

// SetDefaults configures the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())

	v.SetDefault("agent.profile", "")
	v.SetDefault("agent.tick_interval", "5s")
	v.SetDefault("agent.inbox_size", 256)

	v.SetDefault("store.backend", "badger")

	v.SetDefault("hierarchy.backend", HierarchyMemory)
	v.SetDefault("hierarchy.identity", "")

	v.SetDefault("gossip.node_name", "")
	v.SetDefault("gossip.bind_addr", "0.0.0.0")
	v.SetDefault("gossip.port", 7946)
	v.SetDefault("gossip.advertise_addr", "")
	v.SetDefault("gossip.seeds", []string{})

	v.SetDefault("election.policy", "")

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "text")
	v.SetDefault("observability.metrics_addr", ":9090")
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http")
	v.SetDefault("observability.service_name", "arc-fleet")
	v.SetDefault("observability.service_version", "dev")

	v.SetDefault("admin.addr", ":50061")
	v.SetDefault("admin.enable_reflection", false)
}

// BindCommonFlags binds the flags every command shares. They are
// persistent so subcommands inherit them.
func BindCommonFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()
	f.String("config", "", "config file path")
	f.String("data-dir", "", "data directory (default ~/.arc-fleet)")
	f.String("store", "", "configuration store backend (badger, sqlite, redis, s3, memory)")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text, pretty)")

	_ = v.BindPFlag("config", f.Lookup("config"))
	_ = v.BindPFlag("data_dir", f.Lookup("data-dir"))
	_ = v.BindPFlag("store.backend", f.Lookup("store"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
}

// BindStartFlags binds the flags of the start command.
func BindStartFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()
	f.String("profile", "", "agent profile id")
	f.String("identity", "", "external hierarchy identity (default: profile)")
	f.String("hierarchy", "", "hierarchy backend (memory, redis)")
	f.Duration("tick", 0, "reconciliation tick interval")
	f.Int("gossip-port", 0, "gossip bind port")
	f.StringSlice("seeds", nil, "gossip seed addresses")
	f.String("policy", "", "CEL eligibility policy")
	f.String("admin-addr", "", "gRPC admin listen address")
	f.String("metrics-addr", "", "metrics HTTP listen address")
	f.Bool("reflection", false, "enable gRPC reflection")

	_ = v.BindPFlag("agent.profile", f.Lookup("profile"))
	_ = v.BindPFlag("hierarchy.identity", f.Lookup("identity"))
	_ = v.BindPFlag("hierarchy.backend", f.Lookup("hierarchy"))
	_ = v.BindPFlag("agent.tick_interval", f.Lookup("tick"))
	_ = v.BindPFlag("gossip.port", f.Lookup("gossip-port"))
	_ = v.BindPFlag("gossip.seeds", f.Lookup("seeds"))
	_ = v.BindPFlag("election.policy", f.Lookup("policy"))
	_ = v.BindPFlag("admin.addr", f.Lookup("admin-addr"))
	_ = v.BindPFlag("observability.metrics_addr", f.Lookup("metrics-addr"))
	_ = v.BindPFlag("admin.enable_reflection", f.Lookup("reflection"))
}

// Load reads config from flags, env, and file, returning the merged Config.
// Without an explicit file, arc-fleet.{yaml,json,toml} is looked up in the
// working directory, ~/.arc-fleet and /etc/arc-fleet; not finding one is
// not an error.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("arc-fleet")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.arc-fleet")
		v.AddConfigPath("/etc/arc-fleet")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
