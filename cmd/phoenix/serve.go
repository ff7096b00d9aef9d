package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parsascontentcorner/phoenix/internal/commands/devcmd"
	"github.com/parsascontentcorner/phoenix/internal/commands/requestcmd"
	"github.com/parsascontentcorner/phoenix/internal/commands/rolebuttons"
	"github.com/parsascontentcorner/phoenix/internal/commands/teamcmd"
	"github.com/parsascontentcorner/phoenix/internal/database"
	"github.com/parsascontentcorner/phoenix/internal/discord"
	"github.com/parsascontentcorner/phoenix/internal/dispatch"
	"github.com/parsascontentcorner/phoenix/internal/gateway"
	grpcserver "github.com/parsascontentcorner/phoenix/internal/grpc"
	httpserver "github.com/parsascontentcorner/phoenix/internal/http"
	"github.com/parsascontentcorner/phoenix/internal/metrics"
	"github.com/parsascontentcorner/phoenix/internal/ratelimit"
	"github.com/parsascontentcorner/phoenix/internal/teams"
)

const (
	healthInterval  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

var syncCommands bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	log.Info("starting Phoenix",
		zap.String("environment", cfg.Server.Env),
		zap.String("http_port", cfg.Server.HTTPPort),
		zap.String("grpc_port", cfg.Server.GRPCPort),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	db, err := database.NewDB(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer closeDB(db)

	if err := db.RunMigrations(); err != nil {
		return err
	}

	client := discord.NewClient(&cfg.Discord, log)
	client.SetRateLimiter(ratelimit.NewRateLimiter(log))
	client.SetMetrics(m)

	tree := dispatch.NewTree(client, cfg, m, log)
	teamcmd.New(teams.NewRegistry(db, cfg.Cache, m, log), client, log).Register(tree)
	roleButtons := rolebuttons.New(db, client, rolebuttons.NewRegistry(), log)
	roleButtons.Register(tree)
	requestcmd.New(client, cfg.Discord.RequestChannelID, log).Register(tree)
	devcmd.New(cfg.Discord.DeveloperIDs, log).Register(tree)

	if err := roleButtons.Restore(ctx); err != nil {
		return err
	}
	if syncCommands {
		if err := tree.Sync(ctx); err != nil {
			return err
		}
	}

	gw := gateway.New(&cfg.Discord, client, tree.HandleInteraction, m, log)

	httpServer := httpserver.NewServer(httpserver.NewHandlers(db, gw, log), registry, cfg.Server.HTTPPort, log)
	grpcServer, err := grpcserver.NewServer(cfg.Server.GRPCPort, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gw.Run(gctx)
	})
	g.Go(httpServer.Serve)
	g.Go(grpcServer.Serve)
	g.Go(func() error {
		grpcServer.Watch(gctx, healthInterval, db.Health, func(context.Context) error {
			if !gw.IsConnected() {
				return errors.New("gateway is not connected")
			}
			return nil
		})
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown HTTP server gracefully", zap.Error(err))
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("servers shut down successfully")
	return nil
}
