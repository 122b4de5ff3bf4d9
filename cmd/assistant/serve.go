package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"local-assistant/internal/server"
	"local-assistant/internal/tracer"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local HTTP API and session event stream",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	container, err := newContainer(cfg, true)
	if err != nil {
		return err
	}
	defer container.Close()

	log := container.Logger

	shutdownTracer := tracer.InitTracer(cfg.Tracing, log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracer(ctx)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.ConsumerService.Consume(ctx); err != nil {
		return err
	}

	restoreState(ctx, container)

	srv := server.New(cfg, container)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		container.WebSocketHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	err = g.Wait()
	log.Info("BOOT", "Server stopped", nil)
	return err
}
