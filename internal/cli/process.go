package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/circle97/remind/internal/config"
	"github.com/circle97/remind/internal/engine"
	"github.com/circle97/remind/internal/notify"
	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one delivery pass over due reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		report, err := eng.ProcessDue(ctx, time.Now())
		if err != nil {
			return err
		}

		fmt.Printf("due=%d attempted=%d sent=%d failed=%d\n",
			report.Due, report.Attempted, report.Sent, report.Failed)
		return nil
	},
}
