package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-fleet/internal/cli"
	"github.com/gezibash/arc-fleet/internal/observability"
	"github.com/gezibash/arc-fleet/pkg/group"
)

func newSimulateCmd(v *viper.Viper) *cobra.Command {
	var (
		opts          simOptions
		kind, role    string
		showHierarchy bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a fleet in memory and print the outcome",
		Long: `Run several agents in one process against an in-memory hierarchy and an
in-process broadcast bus, tick them in rounds, and print what each agent
ended up believing.

Examples:
  arc-fleet simulate
  arc-fleet simulate --agents 6 --rounds 20
  arc-fleet simulate --leader-leaves --hierarchy-view
  arc-fleet simulate --policy 'score >= 5' -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.Kind, err = group.ParseKind(kind); err != nil {
				return err
			}
			if opts.Role, err = group.ParseRole(role); err != nil {
				return err
			}

			level := v.GetString("observability.log_level")
			if level == "" {
				level = "warn"
			}
			logger := observability.SetupLogger(level, v.GetString("observability.log_format"), cmd.ErrOrStderr())
			res, err := simulate(cmd.Context(), opts, logger)
			if err != nil {
				return err
			}

			out := cli.NewOutput(cli.ParseFormat(v.GetString("output")), cmd.OutOrStdout())
			t := out.Table("simulation", "Profile", "State", "Leader", "Is Leader", "Converged", "Last Result")
			for _, s := range res.Agents {
				t.AddRow(s.ProfileID, s.State, s.LeaderID, strconv.FormatBool(s.IsLeader),
					strconv.FormatBool(s.Converged), s.LastResult.String())
			}
			if err := t.Render(); err != nil {
				return err
			}
			if showHierarchy {
				h := out.Table("hierarchy", "Identity", "Root", "Unit", "Slot")
				for _, m := range res.Hierarchy {
					h.AddRow(m.Identity, strconv.FormatBool(m.IsRoot), strconv.Itoa(m.Slot.Unit), m.Slot.Role.String())
				}
				if err := h.Render(); err != nil {
					return err
				}
			}
			r := out.Result("simulation-summary", "Simulation finished").
				With("rounds", opts.Rounds).
				With("hierarchy calls", res.Actions)
			if res.Departed != "" {
				r.With("departed", res.Departed)
			}
			return r.Render()
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Agents, "agents", 4, "number of agents")
	f.IntVar(&opts.Rounds, "rounds", 12, "ticks per agent")
	f.StringVar(&kind, "kind", "mining", "group kind (mining, anomaly_combat)")
	f.StringVar(&role, "role", "miner", "role of every agent")
	f.StringVar(&opts.Policy, "policy", "", "CEL eligibility policy")
	f.BoolVar(&opts.LeaderLeaves, "leader-leaves", false, "take the leader offline half way through")
	f.BoolVar(&showHierarchy, "hierarchy-view", false, "also print the resulting hierarchy")
	return cmd
}
