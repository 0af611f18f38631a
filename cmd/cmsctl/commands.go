package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/cms-backend/internal/app"
	"github.com/yungbote/cms-backend/internal/data/db"
	types "github.com/yungbote/cms-backend/internal/domain"
	"github.com/yungbote/cms-backend/internal/normalization"
	"github.com/yungbote/cms-backend/internal/services"
	"github.com/yungbote/cms-backend/internal/temporalx/cascaderun"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			// app.New would migrate already; open the database directly.
			cfg.DB.AutoMigrate = false
			return withConfig(cmd, cfg, func(_ context.Context, a *app.App) error {
				if err := db.Migrate(a.DB.DB()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", a.DB.Driver())
				return nil
			})
		},
	}
}

func withConfig(cmd *cobra.Command, cfg app.Config, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func routesCmd() *cobra.Command {
	var enabledOnly bool
	root := &cobra.Command{Use: "routes", Short: "Inspect the route tree"}

	tree := &cobra.Command{
		Use:   "tree",
		Short: "Print the route tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				var (
					roots []*types.RouteTreeNode
					err   error
				)
				if enabledOnly {
					roots, err = a.Services.Routes.GetEnabledTree(ctx)
				} else {
					roots, err = a.Services.Routes.GetTree(ctx)
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range roots {
					r.Walk(func(n *types.RouteTreeNode, depth int) bool {
						label := n.Name
						if n.IsRoute() {
							label = fmt.Sprintf("%s %s -> %s", strings.Join(n.Methods, ","), n.URI, n.Action)
						} else if n.Prefix != "" {
							label = fmt.Sprintf("%s [/%s]", n.Name, n.Prefix)
						}
						state := ""
						if !n.Enabled {
							state = " (disabled)"
						}
						fmt.Fprintf(out, "%s%s %s%s\n", strings.Repeat("  ", depth), n.Kind, label, state)
						return true
					})
				}
				return nil
			})
		},
	}
	tree.Flags().BoolVar(&enabledOnly, "enabled", false, "only enabled nodes")

	compile := &cobra.Command{
		Use:   "compile",
		Short: "Compile the enabled tree and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := a.Table.Rebuild(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}

	root.AddCommand(tree, compile)
	return root
}

func reservedCmd() *cobra.Command {
	root := &cobra.Command{Use: "reserved", Short: "Inspect and sync reserved paths"}

	check := &cobra.Command{
		Use:   "check PATH...",
		Short: "Report whether each path collides with a reservation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				for _, raw := range args {
					path, err := a.Services.Reserved.IsReservedPath(ctx, raw)
					if err != nil {
						return err
					}
					prefix, err := a.Services.Reserved.IsReservedPrefix(ctx, raw)
					if err != nil {
						return err
					}
					slug, err := a.Services.Reserved.IsReservedSlug(ctx, normalization.FirstSegment(raw))
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tpath=%t prefix=%t slug=%t\n", normalization.Path(raw), path, prefix, slug)
				}
				return nil
			})
		},
	}

	sync := &cobra.Command{
		Use:   "sync MANIFEST...",
		Short: "Replace the reservations of each manifest's source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				for _, p := range args {
					m, err := services.LoadReservedManifest(p)
					if err != nil {
						return err
					}
					if err := a.Services.Reserved.SyncSource(ctx, m.Source, m.Entries()); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "synced %s: %d entries\n", m.Source, len(m.Entries()))
				}
				return nil
			})
		},
	}

	pattern := &cobra.Command{
		Use:   "slug-pattern",
		Short: "Print the slug pattern excluding reserved first segments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Services.Reserved.SlugPattern(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}

	root.AddCommand(check, sync, pattern)
	return root
}

func blueprintCmd() *cobra.Command {
	var wait bool
	root := &cobra.Command{Use: "blueprint", Short: "Blueprint maintenance"}

	cascade := &cobra.Command{
		Use:   "cascade BLUEPRINT_ID",
		Short: "Raise a structure change and rematerialize dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid blueprint id: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				out, err := a.Services.Blueprints.RaiseStructureChanged(ctx, id)
				if err != nil {
					return err
				}
				if !out.Deferred || !wait {
					return printJSON(cmd, out)
				}
				res, err := cascaderun.Await(ctx, a.Temporal, out.WorkflowID)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	cascade.Flags().BoolVar(&wait, "wait", false, "wait for a deferred cascade to finish")

	root.AddCommand(cascade)
	return root
}
