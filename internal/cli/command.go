package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-fleet/internal/config"
	"github.com/gezibash/arc-fleet/internal/groupstore"
	"github.com/gezibash/arc-fleet/internal/observability"
)

// Env is what a short-lived command runs against.
type Env struct {
	Config config.Config
	Store  *groupstore.Store
	Logger *slog.Logger
}

// CommandConfig configures a CLI command run by RunCommand.
type CommandConfig struct {
	// Name identifies this command in logs.
	Name string

	// Viper holds the command's configuration.
	Viper *viper.Viper

	// Timeout for the command operation. Zero means no timeout.
	Timeout time.Duration

	// Run is the command's business logic.
	Run func(ctx context.Context, env *Env, out *Output) error
}

// RunCommand loads configuration, opens the configuration store and runs
// cfg.Run with a context cancelled on SIGINT or SIGTERM. Logs go to
// {data_dir}/log/cli.log so they do not mix with command output.
func RunCommand(cfg CommandConfig) error {
	if cfg.Name == "" {
		return errors.New("command name required")
	}
	if cfg.Viper == nil {
		return errors.New("viper required")
	}
	if cfg.Run == nil {
		return errors.New("run function required")
	}

	c, err := config.Load(cfg.Viper, cfg.Viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logW, closeLog := openLog(c.DataDir)
	defer closeLog()
	logger := observability.SetupLogger(c.Observability.LogLevel, c.Observability.LogFormat, logW).
		With("command", cfg.Name)

	store, err := groupstore.Open(context.Background(), c.Store.Backend, c.StoreBackendConfig(), nil)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	env := &Env{Config: c, Store: store, Logger: logger}
	return cfg.Run(ctx, env, NewOutputFromViper(cfg.Viper))
}

func openLog(dataDir string) (io.Writer, func()) {
	logDir := filepath.Join(dataDir, "log")
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return io.Discard, func() {}
	}
	f, err := os.OpenFile(filepath.Join(logDir, "cli.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path is built from the data dir
	if err != nil {
		return io.Discard, func() {}
	}
	return f, func() { _ = f.Close() }
}
