package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/gezibash/arc-fleet/internal/agent"
	"github.com/gezibash/arc-fleet/internal/config"
	"github.com/gezibash/arc-fleet/internal/election"
	"github.com/gezibash/arc-fleet/internal/gossip"
	"github.com/gezibash/arc-fleet/internal/groupstore"
	"github.com/gezibash/arc-fleet/internal/hierarchy"
	hiermemory "github.com/gezibash/arc-fleet/internal/hierarchy/memory"
	hierredis "github.com/gezibash/arc-fleet/internal/hierarchy/redis"
	"github.com/gezibash/arc-fleet/internal/observability"
	"github.com/gezibash/arc-fleet/internal/scheduler"
	"github.com/gezibash/arc-fleet/internal/score"
)

const shutdownTimeout = 10 * time.Second

func newStartCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run a fleet agent",
		Long: `Run a fleet agent for one profile.

The agent reads its settings and group from the configuration store, gossips
its state to the other agents of the group, and reconciles the external
hierarchy once per tick. SIGHUP reloads the configuration and tells the other
agents to do the same.

Examples:
  arc-fleet start --profile pilot-1
  arc-fleet start --profile pilot-1 --seeds 10.0.0.2:7946
  arc-fleet start --profile pilot-1 --hierarchy redis --identity "Ann"
  arc-fleet start --profile pilot-1 --tick 2s --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, v.GetString("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAgent(ctx, cfg)
		},
	}

	config.BindStartFlags(cmd, v)
	return cmd
}

func runAgent(ctx context.Context, cfg config.Config) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obs, err := observability.New(ctx, observability.Config{
		LogLevel:       cfg.Observability.LogLevel,
		LogFormat:      cfg.Observability.LogFormat,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		OTLPProtocol:   cfg.Observability.OTLPProtocol,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: version,
		InstanceID:     cfg.Agent.Profile,
	}, os.Stderr)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	logger := obs.Logger
	slog.SetDefault(logger)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = errors.Join(err, obs.Close(sctx))
	}()

	store, err := groupstore.Open(ctx, cfg.Store.Backend, cfg.StoreBackendConfig(), obs.Metrics)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	obs.Shutdown.Register("groupstore", func(context.Context) error { return store.Close() })

	sys, err := openHierarchy(ctx, cfg, obs.Shutdown, logger)
	if err != nil {
		return err
	}

	g, err := gossip.New(gossip.Config{
		NodeName:      cfg.Gossip.NodeName,
		BindAddr:      cfg.Gossip.BindAddr,
		BindPort:      cfg.Gossip.Port,
		AdvertiseAddr: cfg.Gossip.AdvertiseAddr,
		AdvertisePort: cfg.Gossip.AdvertisePort,
		Seeds:         cfg.Gossip.Seeds,
		ProfileID:     cfg.Agent.Profile,
		Version:       version,
	}, logger)
	if err != nil {
		return fmt.Errorf("create gossip: %w", err)
	}
	obs.Shutdown.Register("gossip", func(context.Context) error { return g.Close() })

	engine, err := election.New(cfg.Election.Policy)
	if err != nil {
		return fmt.Errorf("election policy: %w", err)
	}

	a, err := agent.New(agent.Options{
		ProfileID: cfg.Agent.Profile,
		Store:     store,
		Hierarchy: sys,
		Transport: g,
		Election:  engine,
		Skills:    score.Levels(cfg.Agent.Skills),
		Scheduler: scheduler.New(
			scheduler.WithInterval(cfg.Agent.Interval()),
			scheduler.WithLogger(logger),
		),
		Metrics:   obs.Metrics,
		Logger:    logger,
		InboxSize: cfg.Agent.InboxSize,
	})
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	if err := g.Start(ctx); err != nil {
		return fmt.Errorf("start gossip: %w", err)
	}
	a.Start(ctx)
	defer a.Stop()

	if cfg.Observability.MetricsAddr != "" {
		if _, err := obs.ServeMetrics(cfg.Observability.MetricsAddr, a.Ready); err != nil {
			return err
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(obs.Metrics)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(obs.Metrics)),
	)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, hs)
	if cfg.Admin.EnableReflection {
		reflection.Register(grpcServer)
	}
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	lc := net.ListenConfig{}
	lis, err := lc.Listen(ctx, "tcp", cfg.Admin.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("agent started",
		"profile", cfg.Agent.Profile,
		"identity", cfg.Identity(),
		"admin", lis.Addr().String(),
		"gossip", g.Addr(),
		"tick", cfg.Agent.Interval(),
	)

	errCh := make(chan error, 2)
	go func() { errCh <- grpcServer.Serve(lis) }()
	go func() { errCh <- a.Run(ctx) }()
	go watchReady(ctx, a, hs, cfg.Agent.Interval())
	go watchReload(ctx, a, logger)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		err = nil
	case err = <-errCh:
	}
	cancel()
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpcServer.GracefulStop()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// openHierarchy connects this agent's session on the configured external
// hierarchy.
func openHierarchy(ctx context.Context, cfg config.Config, sd *observability.ShutdownCoordinator, logger *slog.Logger) (hierarchy.System, error) {
	switch cfg.Hierarchy.Backend {
	case config.HierarchyRedis:
		w, err := hierredis.New(ctx, cfg.Hierarchy.Redis)
		if err != nil {
			return nil, fmt.Errorf("open hierarchy: %w", err)
		}
		sd.Register("hierarchy", func(context.Context) error { return w.Close() })
		s, err := w.Session(ctx, cfg.Identity())
		if err != nil {
			return nil, fmt.Errorf("hierarchy session: %w", err)
		}
		return s, nil
	default:
		logger.Warn("in-memory hierarchy is private to this process; other agents cannot join it")
		return hiermemory.NewWorld().Session(cfg.Identity()), nil
	}
}

// watchReady mirrors agent readiness into the gRPC health status.
func watchReady(ctx context.Context, a *agent.Agent, hs *health.Server, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	serving := false
	for {
		ready := a.Ready() == nil
		if ready != serving {
			serving = ready
			st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
			if ready {
				st = grpc_health_v1.HealthCheckResponse_SERVING
			}
			hs.SetServingStatus("", st)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// watchReload reconfigures the agent on SIGHUP.
func watchReload(ctx context.Context, a *agent.Agent, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("reloading configuration")
			a.Reconfigure(ctx)
		}
	}
}
