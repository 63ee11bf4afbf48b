package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/circle97/remind/internal/config"
	"github.com/circle97/remind/internal/engine"
	"github.com/circle97/remind/internal/notify"
	"github.com/circle97/remind/internal/server"
	"github.com/circle97/remind/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and the reminder delivery loop",
	RunE:  runServe,
}

// openStore resolves the database path from config/env and opens the store.
func openStore(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if env := os.Getenv("REMIND_DB"); env != "" {
		dbPath = env
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(dbPath)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(db, notify.LogNotifier{})
	if cfg.Delivery.SendTimeoutSecs > 0 {
		eng.SendTimeout = time.Duration(cfg.Delivery.SendTimeoutSecs) * time.Second
	}

	// The engine is caller-driven; the serve command supplies the cadence.
	c := cron.New()
	_, err = c.AddFunc(cfg.Delivery.PollCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		report, err := eng.ProcessDue(ctx, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "process: %v\n", err)
			return
		}
		if report.Attempted > 0 {
			fmt.Fprintf(os.Stderr, "process: sent=%d failed=%d of %d due\n",
				report.Sent, report.Failed, report.Due)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid poll_cron %q: %w", cfg.Delivery.PollCron, err)
	}
	c.Start()
	defer c.Stop()

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "remind serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		fmt.Fprintf(os.Stderr, "  poll: %s\n", cfg.Delivery.PollCron)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
