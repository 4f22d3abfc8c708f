package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-fleet/internal/cli"
	"github.com/gezibash/arc-fleet/internal/gossip"
	"github.com/gezibash/arc-fleet/internal/observability"
	"github.com/gezibash/arc-fleet/internal/protocol"
)

func newReloadCmd(v *viper.Viper) *cobra.Command {
	var (
		seeds   []string
		groupID string
		port    int
		wait    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Tell running agents to reload their configuration",
		Long: `Join the gossip cluster briefly and broadcast a reload request.

Agents of the named group, or every agent when no group is given, re-read
their settings and group definition and start over from self
initialization.

Examples:
  arc-fleet reload --seeds 10.0.0.1:7946
  arc-fleet reload --seeds 10.0.0.1:7946 --group <id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(seeds) == 0 {
				return fmt.Errorf("at least one --seeds address is required")
			}
			level := v.GetString("observability.log_level")
			if level == "" {
				level = "warn"
			}
			logger := observability.SetupLogger(level, v.GetString("observability.log_format"), os.Stderr)

			sender := "arc-fleet-cli-" + uuid.NewString()[:8]
			g, err := gossip.New(gossip.Config{
				BindPort:  port,
				Seeds:     seeds,
				ProfileID: sender,
				GroupID:   groupID,
				Version:   version,
			}, logger)
			if err != nil {
				return fmt.Errorf("create gossip: %w", err)
			}
			defer func() { _ = g.Close() }()

			ctx := cmd.Context()
			if err := g.Start(ctx); err != nil {
				return fmt.Errorf("start gossip: %w", err)
			}
			if g.NumMembers() < 2 {
				return fmt.Errorf("could not reach any seed of %v", seeds)
			}
			if err := g.SendToAll(protocol.ReloadConfig(sender, groupID)); err != nil {
				return err
			}

			// Stay long enough for a few gossip rounds to carry the request.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}

			out := cli.NewOutput(cli.ParseFormat(v.GetString("output")), cmd.OutOrStdout())
			if err := out.GossipTable(g.Members()).Render(); err != nil {
				return err
			}
			target := groupID
			if target == "" {
				target = "all"
			}
			return out.Result("reload", "Reload requested").
				With("group", target).
				With("cluster size", g.NumMembers()).
				Render()
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&seeds, "seeds", nil, "gossip addresses of running agents")
	f.StringVar(&groupID, "group", "", "only reload agents of this group")
	f.IntVar(&port, "gossip-port", 0, "local gossip port (0 picks a free port)")
	f.DurationVar(&wait, "wait", 2*time.Second, "how long to stay in the cluster")
	return cmd
}
