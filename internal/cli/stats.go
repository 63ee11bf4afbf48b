package cli

import (
	"fmt"
	"time"

	"github.com/circle97/remind/internal/config"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print reminder counts by state",
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

		stats, err := db.Stats(time.Now())
		if err != nil {
			return err
		}

		fmt.Printf("pending:    %d\n", stats.Pending)
		fmt.Printf("sent:       %d\n", stats.Sent)
		fmt.Printf("failed:     %d\n", stats.Failed)
		fmt.Printf("cancelled:  %d\n", stats.Cancelled)
		fmt.Printf("due today:  %d\n", stats.DueToday)
		fmt.Printf("due 7 days: %d\n", stats.DueWeek)
		return nil
	},
}
