package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/leakwatch/internal/model"
)

var (
	exportGroup    string
	exportStart    string
	exportEnd      string
	exportFilename string
	exportTitle    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export victims to a styled XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter := model.VictimFilter{GroupName: exportGroup, Limit: 10000}
		if exportStart != "" {
			start, err := parseDateFlag(exportStart)
			if err != nil {
				return err
			}
			filter.StartDate = start
		}
		if exportEnd != "" {
			end, err := parseDateFlag(exportEnd)
			if err != nil {
				return err
			}
			filter.EndDate = end
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		victims, err := env.store.ListVictims(ctx, filter)
		if err != nil {
			return err
		}

		path, err := env.exporter.Export(victims, exportFilename, exportTitle)
		if err != nil {
			return err
		}

		fmt.Printf("Exported %d victims to %s\n", len(victims), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportGroup, "group", "", "restrict to one ransomware group")
	exportCmd.Flags().StringVar(&exportStart, "start", "", "window start, YYYY-MM-DD")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "window end, YYYY-MM-DD")
	exportCmd.Flags().StringVar(&exportFilename, "out", "", "output filename (default timestamped)")
	exportCmd.Flags().StringVar(&exportTitle, "title", "", "report title")

	rootCmd.AddCommand(exportCmd)
}
