package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/circle97/remind/internal/engine"
	"github.com/spf13/cobra"
)

var recognizeOwner string

var recognizeCmd = &cobra.Command{
	Use:   "recognize [text]",
	Short: "Detect candidate events in free text",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		text := strings.Join(args, " ")
		candidates := engine.Recognize(text, recognizeOwner, time.Now())

		if len(candidates) == 0 {
			fmt.Println("no events recognized")
			return
		}

		for _, c := range candidates {
			ev := c.Event
			when := ev.StartTime.Format("2006-01-02 15:04")
			if ev.AllDay {
				when = ev.StartTime.Format("2006-01-02") + " (all day)"
			}
			fmt.Printf("%-12s %-8s %s  recurrence=%s  keyword=%q\n",
				ev.Category, ev.Priority, when, ev.Recurrence, c.Keyword)
		}
	},
}

func init() {
	recognizeCmd.Flags().StringVarP(&recognizeOwner, "owner", "o", "local", "Owner ID for recognized candidates")
}
