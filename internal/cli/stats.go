package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server operation statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	snap, err := apiClient.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}

	uptime := time.Duration(snap.UptimeSeconds * float64(time.Second)).Round(time.Second)
	fmt.Printf("Server uptime: %s\n\n", uptime)

	if len(snap.Operations) == 0 {
		fmt.Println(defaultTheme.hintStyle().Render("No operations recorded yet."))
		return nil
	}

	ops := make([]string, 0, len(snap.Operations))
	for op := range snap.Operations {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	fmt.Printf("%-18s %8s %8s %10s %10s %10s\n", "operation", "count", "failed", "avg ms", "min ms", "max ms")
	for _, op := range ops {
		s := snap.Operations[op]
		fmt.Printf("%-18s %8d %8d %10.1f %10d %10d\n",
			op, s.Count, s.Failures, s.AvgTimeMs, s.MinTimeMs, s.MaxTimeMs)
	}
	return nil
}
