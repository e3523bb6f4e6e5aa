package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize tracked victims",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.store.Stats(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Victims:         %d (%d pending, %d reviewed)\n",
			stats.TotalVictims, stats.PendingCount, stats.ReviewedCount)
		fmt.Printf("SEC regulated:   %d\n", stats.SECRegulated)
		fmt.Printf("With 8-K filing: %d\n", stats.With8KFiling)
		fmt.Printf("Active monitors: %d\n", stats.ActiveMonitors)

		fmt.Println("\nBy company type:")
		for _, line := range sortedCounts(stats.ByCompanyType) {
			fmt.Println("  " + line)
		}
		fmt.Println("\nBy group:")
		for _, line := range sortedCounts(stats.ByGroup) {
			fmt.Println("  " + line)
		}
		return nil
	},
}

// sortedCounts renders a count map as "name: n" lines, highest first.
func sortedCounts(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s: %d", k, counts[k])
	}
	return lines
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
