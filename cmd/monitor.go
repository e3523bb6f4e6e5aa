package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/leakwatch/internal/model"
)

var (
	monitorGroup    string
	monitorStart    string
	monitorEnd      string
	monitorInterval int
	monitorExpire   int
	monitorAll      bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Manage recurring leak-site monitors",
}

var monitorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a monitor for one ransomware group",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		create := model.MonitorCreate{
			GroupName:         monitorGroup,
			PollIntervalHours: monitorInterval,
			AutoExpireDays:    monitorExpire,
		}
		start, err := parseDateFlag(monitorStart)
		if err != nil {
			return err
		}
		create.StartDate = start
		if monitorEnd != "" {
			end, err := parseDateFlag(monitorEnd)
			if err != nil {
				return err
			}
			create.EndDate = &end
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		exists, err := env.leaks.GroupExists(ctx, monitorGroup)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("group %q is not tracked by RansomLook", monitorGroup)
		}

		m, err := env.store.CreateMonitor(ctx, create)
		if err != nil {
			return err
		}
		fmt.Printf("Created monitor %s for %s (every %dh)\n", m.ID, m.GroupName, m.PollIntervalHours)
		return nil
	},
}

var monitorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitors",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		monitors, err := env.store.ListMonitors(ctx, !monitorAll)
		if err != nil {
			return err
		}

		for _, m := range monitors {
			state := "active"
			if !m.Active {
				state = "inactive"
			}
			last := "never"
			if m.LastPollAt != nil {
				last = m.LastPollAt.Format("2006-01-02 15:04")
			}
			fmt.Printf("%s  %-20s %-8s every %dh, last poll %s\n", m.ID, m.GroupName, state, m.PollIntervalHours, last)
		}
		fmt.Printf("\n%d monitors\n", len(monitors))
		return nil
	},
}

var monitorStopCmd = &cobra.Command{
	Use:   "stop <monitor-id>",
	Short: "Deactivate a monitor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.store.DeactivateMonitor(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Monitor %s deactivated\n", args[0])
		return nil
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll every monitor that is due",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.poller.PollDue(ctx)
		if err != nil {
			return err
		}

		var inserted, failed int
		for _, res := range results {
			if res.Err != nil {
				failed++
				fmt.Printf("%-20s FAILED: %v\n", res.GroupName, res.Err)
				continue
			}
			inserted += res.Inserted
			fmt.Printf("%-20s %d new, %d skipped\n", res.GroupName, res.Inserted, res.Skipped)
		}
		fmt.Printf("\nPolled %d monitors: %d new victims, %d failures\n", len(results), inserted, failed)
		return nil
	},
}

func init() {
	monitorAddCmd.Flags().StringVar(&monitorGroup, "group", "", "ransomware group name (required)")
	monitorAddCmd.Flags().StringVar(&monitorStart, "start", "", "window start, YYYY-MM-DD (required)")
	monitorAddCmd.Flags().StringVar(&monitorEnd, "end", "", "window end, YYYY-MM-DD")
	monitorAddCmd.Flags().IntVar(&monitorInterval, "interval", 24, "poll interval in hours")
	monitorAddCmd.Flags().IntVar(&monitorExpire, "expire-days", 0, "auto-expire after N days (0 = never)")
	_ = monitorAddCmd.MarkFlagRequired("group")
	_ = monitorAddCmd.MarkFlagRequired("start")

	monitorListCmd.Flags().BoolVar(&monitorAll, "all", false, "include inactive monitors")

	monitorCmd.AddCommand(monitorAddCmd, monitorListCmd, monitorStopCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(pollCmd)
}
