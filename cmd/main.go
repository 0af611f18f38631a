package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/cms-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		a.Log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	a.Log.Info("cms-backend listening", "addr", a.Cfg.HTTP.Addr)
	if err := a.Run(ctx); err != nil {
		a.Log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
