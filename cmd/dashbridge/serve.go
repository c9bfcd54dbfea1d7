package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/chris/dashbridge/config"
	"github.com/chris/dashbridge/internal/discord"
	"github.com/chris/dashbridge/internal/scheduler"
	"github.com/chris/dashbridge/internal/server"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the Discord bot when configured)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 3200, "listen port (default $PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	sched := scheduler.New()
	if a.pool != nil {
		if err := sched.Add("reap-sessions", cfg.ReapSchedule, scheduler.ReapSessions(a.pool, cfg.SessionIdle)); err != nil {
			return err
		}
	}
	if cfg.MessageRetention > 0 {
		if err := sched.Add("prune-messages", cfg.ReapSchedule, scheduler.PruneMessages(a.db, cfg.MessageRetention, time.Now)); err != nil {
			return err
		}
	}
	sched.Start()

	if cfg.DiscordToken != "" {
		bot, err := discord.NewBot(cfg.DiscordToken, a.bridge)
		if err != nil {
			return err
		}
		defer bot.Close()
	}

	srv := server.New(a.bridge, server.Options{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		CORSOrigins: cfg.CORSOrigins,
		Registry:    a.registry,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err = <-errc:
	case <-ctx.Done():
		log.Println("shutting down.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Printf("server: shutdown: %v", serr)
	}
	sched.Stop(shutdownCtx)
	return err
}
