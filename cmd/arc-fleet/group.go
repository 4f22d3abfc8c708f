package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-fleet/internal/cli"
	"github.com/gezibash/arc-fleet/pkg/group"
)

func newGroupCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage group definitions",
		Long: `Create, inspect and edit the groups stored in the configuration store.

Member order is the order in which a leader invites members.

Examples:
  arc-fleet group create "Belt Crew" --kind mining --member pilot-1 --member pilot-2
  arc-fleet group list
  arc-fleet group show <id>
  arc-fleet group add-member <id> pilot-3
  arc-fleet group move-member <id> pilot-3 0`,
	}

	cmd.AddCommand(
		newGroupCreateCmd(v),
		newGroupListCmd(v),
		newGroupShowCmd(v),
		newGroupAddMemberCmd(v),
		newGroupRemoveMemberCmd(v),
		newGroupMoveMemberCmd(v),
		newGroupDeleteCmd(v),
	)
	return cmd
}

func newGroupCreateCmd(v *viper.Viper) *cobra.Command {
	var (
		kind    string
		members []string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := group.ParseKind(kind)
			if err != nil {
				return err
			}
			return cli.RunCommand(cli.CommandConfig{
				Name:  "group-create",
				Viper: v,
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					g, err := group.Create(args[0], k, members...)
					if err != nil {
						return err
					}
					if err := env.Store.SaveGroup(ctx, g); err != nil {
						return fmt.Errorf("save group: %w", err)
					}
					env.Logger.Info("group created", "group", g.ID, "members", len(g.Members))
					return out.Result("group-created", "Group created").
						With("id", g.ID).
						With("name", g.Name).
						With("kind", g.Kind.String()).
						With("members", len(g.Members)).
						Render()
				},
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "mining", "group kind (mining, anomaly_combat)")
	cmd.Flags().StringSliceVarP(&members, "member", "m", nil, "member profile id (repeatable, in invitation order)")
	return cmd
}

func newGroupListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:  "group-list",
				Viper: v,
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					groups, err := env.Store.ListGroups(ctx)
					if err != nil && len(groups) == 0 {
						return err
					}
					if err != nil {
						env.Logger.Warn("skipped unreadable groups", "error", err)
					}
					return out.GroupsTable(groups).Render()
				},
			})
		},
	}
}

func newGroupShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:  "group-show",
				Viper: v,
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					g, err := env.Store.LoadGroupDefinition(ctx, args[0])
					if err != nil {
						return err
					}
					return out.GroupKV(g).Render()
				},
			})
		},
	}
}

// editGroup loads a group, applies fn and saves the result.
func editGroup(v *viper.Viper, name, id, message string, fn func(*group.Group) (*group.Group, error)) error {
	return cli.RunCommand(cli.CommandConfig{
		Name:  name,
		Viper: v,
		Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
			current, err := env.Store.LoadGroupDefinition(ctx, id)
			if err != nil {
				return err
			}
			next, err := fn(current)
			if err != nil {
				return err
			}
			if err := env.Store.SaveGroup(ctx, next); err != nil {
				return fmt.Errorf("save group: %w", err)
			}
			return out.Result(name, message).
				With("id", next.ID).
				With("members", len(next.Members)).
				Render()
		},
	})
}

func newGroupAddMemberCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "add-member <id> <profile>",
		Short: "Append a member to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editGroup(v, "group-add-member", args[0], "Member added", func(g *group.Group) (*group.Group, error) {
				return group.AddMember(g, args[1])
			})
		},
	}
}

func newGroupRemoveMemberCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-member <id> <profile>",
		Short: "Remove a member from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editGroup(v, "group-remove-member", args[0], "Member removed", func(g *group.Group) (*group.Group, error) {
				return group.RemoveMember(g, args[1])
			})
		},
	}
}

func newGroupMoveMemberCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "move-member <id> <profile> <position>",
		Short: "Move a member within the invitation order",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("position: %w", err)
			}
			return editGroup(v, "group-move-member", args[0], "Member moved", func(g *group.Group) (*group.Group, error) {
				return group.MoveMember(g, args[1], pos)
			})
		},
	}
}

func newGroupDeleteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:  "group-delete",
				Viper: v,
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					if err := env.Store.DeleteGroup(ctx, args[0]); err != nil {
						return err
					}
					return out.Result("group-deleted", "Group deleted").With("id", args[0]).Render()
				},
			})
		},
	}
}
