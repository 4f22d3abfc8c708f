package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-fleet/internal/cli"
	"github.com/gezibash/arc-fleet/internal/groupstore"
	"github.com/gezibash/arc-fleet/pkg/group"
)

func newSettingsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage per-agent settings",
		Long: `Show or change which group an agent belongs to and the role it declares.

Running agents pick up changes on SIGHUP or after "arc-fleet reload".

Examples:
  arc-fleet settings show pilot-1
  arc-fleet settings set pilot-1 --group <id> --role miner`,
	}
	cmd.AddCommand(newSettingsShowCmd(v), newSettingsSetCmd(v))
	return cmd
}

func newSettingsShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show <profile>",
		Short: "Show an agent's settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:  "settings-show",
				Viper: v,
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					s, err := env.Store.LoadAgentSettings(ctx, args[0])
					if err != nil {
						return err
					}
					kv := out.KV("settings").
						Set("Profile", args[0]).
						Set("Group ID", s.CurrentGroupID).
						Set("Role", s.Role.String())
					if g, err := env.Store.LoadGroupDefinition(ctx, s.CurrentGroupID); err == nil {
						kv.Set("Group", g.Name).Set("Listed", g.HasMember(args[0]))
					}
					return kv.Render()
				},
			})
		},
	}
}

func newSettingsSetCmd(v *viper.Viper) *cobra.Command {
	var groupID, role string
	cmd := &cobra.Command{
		Use:   "set <profile>",
		Short: "Change an agent's settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:  "settings-set",
				Viper: v,
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					s, err := env.Store.LoadAgentSettings(ctx, args[0])
					if err != nil && !errors.Is(err, groupstore.ErrNotFound) {
						return err
					}
					if cmd.Flags().Changed("group") {
						s.CurrentGroupID = groupID
					}
					if cmd.Flags().Changed("role") {
						if s.Role, err = group.ParseRole(role); err != nil {
							return err
						}
					}
					if err := env.Store.SaveAgentSettings(ctx, args[0], s); err != nil {
						return fmt.Errorf("save settings: %w", err)
					}
					return out.Result("settings-saved", "Settings saved").
						With("profile", args[0]).
						With("group", s.CurrentGroupID).
						With("role", s.Role.String()).
						Render()
				},
			})
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "current group id")
	cmd.Flags().StringVar(&role, "role", "", "role (combat, miner, hauler, booster)")
	return cmd
}
