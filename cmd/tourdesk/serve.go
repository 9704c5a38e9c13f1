package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/example/tourdesk/internal/booking"
	"github.com/example/tourdesk/internal/config"
	"github.com/example/tourdesk/internal/db"
	"github.com/example/tourdesk/internal/dispatch"
	"github.com/example/tourdesk/internal/identity"
	"github.com/example/tourdesk/internal/maintenance"
	"github.com/example/tourdesk/internal/notify"
	"github.com/example/tourdesk/internal/queue"
	"github.com/example/tourdesk/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Tourdesk API server and maintenance scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "tourdesk.yaml", "path to Tourdesk config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	fmt.Fprintf(out, "Connected to %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	q := buildQueue(cfg, gormDB, out)
	resolver := buildResolver(cfg, gormDB)
	notifier := buildNotifier(cfg)

	svc, err := booking.NewService(booking.Opts{
		DB:          gormDB,
		Queue:       q,
		Resolver:    resolver,
		Notifier:    notifier,
		MaxCapacity: cfg.Scheduler.MaxCapacity,
	})
	if err != nil {
		return err
	}
	dispatcher, err := dispatch.New(dispatch.Opts{
		Booking:  svc,
		Queue:    q,
		Resolver: resolver,
		Notifier: notifier,
	})
	if err != nil {
		return err
	}
	sweeper, err := maintenance.New(maintenance.Opts{
		Booking:  svc,
		Queue:    q,
		Notifier: notifier,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	go func() {
		if err := sweeper.Run(ctx, cfg.Scheduler.SweepSchedule); err != nil && ctx.Err() == nil {
			fmt.Fprintf(out, "maintenance scheduler stopped: %v\n", err)
		}
	}()
	fmt.Fprintf(out, "Maintenance sweeps scheduled at %q\n", cfg.Scheduler.SweepSchedule)

	return server.Start(ctx, server.StartOpts{
		Booking:    svc,
		Dispatcher: dispatcher,
		Sweeper:    sweeper,
		Port:       port,
		Out:        out,
	})
}

// buildQueue picks the queue backend: Redis when configured, otherwise the
// primary database.
func buildQueue(cfg *config.Config, gormDB *gorm.DB, out io.Writer) queue.Queue {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		fmt.Fprintf(out, "Tour queue on Redis at %s\n", cfg.Redis.Addr)
		return queue.NewRedisQueue(client)
	}
	return queue.NewGormQueue(gormDB)
}

// buildResolver chains the external identity provider (when configured) with
// the local user store.
func buildResolver(cfg *config.Config, gormDB *gorm.DB) identity.Resolver {
	chain := identity.Chain{}
	if cfg.Identity.BaseURL != "" {
		chain = append(chain, identity.NewHTTPResolver(cfg.Identity.BaseURL, cfg.Identity.APIKey))
	}
	chain = append(chain, identity.NewLocalStore(gormDB))
	return chain
}

// buildNotifier assembles the configured notification channels.
func buildNotifier(cfg *config.Config) notify.Notifier {
	var channels notify.Multi
	if cfg.Notify.SMTP.Host != "" {
		channels = append(channels, notify.NewMailer(cfg.Notify.SMTP))
	}
	if cfg.Notify.Slack.WebhookURL != "" {
		channels = append(channels, notify.NewSlackNotifier(cfg.Notify.Slack))
	}
	if len(channels) == 0 {
		return notify.Discard{}
	}
	return channels
}
