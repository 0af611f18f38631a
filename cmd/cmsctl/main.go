package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/cms-backend/internal/app"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cmsctl",
		Short:         "Operate the cms-backend structural store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(), routesCmd(), reservedCmd(), blueprintCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cmsctl: %v\n", err)
		os.Exit(1)
	}
}

// withApp builds the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	return withConfig(cmd, cfg, fn)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
