package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "remind",
	Short: "Recurring event and tiered reminder engine",
	Long:  "Remind records calendar events, detects them in free text, expands recurrences, and delivers priority-scaled multi-stage reminders. Single Go binary backed by SQLite.",
}

var configPath string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recognizeCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(statsCmd)
}
