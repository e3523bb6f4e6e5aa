package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leakwatch/internal/disclosure"
	"github.com/sells-group/leakwatch/internal/model"
	"github.com/sells-group/leakwatch/internal/store"
)

var (
	correlateCompany string
	correlateCIK     string
	correlateDate    string
	correlateGroup   string
	correlateLimit   int
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Check one company against SEC 8-K disclosure sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		postDate, err := parseDateFlag(correlateDate)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.correlator.Correlate(ctx, disclosure.Query{
			CompanyName: correlateCompany,
			CIK:         correlateCIK,
			PostDate:    postDate,
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

var correlateBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Correlate stored victims and persist the outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		victims, err := env.store.ListVictims(ctx, model.VictimFilter{
			GroupName: correlateGroup,
			Limit:     correlateLimit,
		})
		if err != nil {
			return err
		}

		// Only victims with an identified company can be correlated.
		var candidates []model.Victim
		queries := make([]disclosure.Query, 0, len(victims))
		for _, v := range victims {
			name := v.CompanyName
			if name == "" {
				continue
			}
			candidates = append(candidates, v)
			queries = append(queries, disclosure.Query{
				CompanyName: name,
				CIK:         v.SECCIK,
				PostDate:    v.PostDate,
			})
		}
		if len(queries) == 0 {
			fmt.Println("No classified victims to correlate")
			return nil
		}

		results := env.correlator.CorrelateBatch(ctx, queries, cfg.Batch.Concurrency)

		var found int
		for i, res := range results {
			update := store.CorrelationUpdate{
				Found:          res.Found,
				FilingURL:      res.FilingURL,
				Source:         res.Source,
				Item:           res.Item,
				DisclosureDays: res.DisclosureDays,
			}
			if !res.FilingDate.IsZero() {
				d := res.FilingDate
				update.FilingDate = &d
			}
			if err := env.store.Update8KCorrelation(ctx, candidates[i].ID, update); err != nil {
				zap.L().Warn("failed to persist correlation",
					zap.String("victim_id", candidates[i].ID),
					zap.Error(err))
				continue
			}
			if res.Found {
				found++
			}
		}

		fmt.Printf("Correlated %d victims: %d disclosures found\n", len(results), found)
		return nil
	},
}

func init() {
	correlateCmd.Flags().StringVar(&correlateCompany, "company", "", "company name (required)")
	correlateCmd.Flags().StringVar(&correlateCIK, "cik", "", "SEC Central Index Key")
	correlateCmd.Flags().StringVar(&correlateDate, "date", "", "leak post date, YYYY-MM-DD (required)")
	_ = correlateCmd.MarkFlagRequired("company")
	_ = correlateCmd.MarkFlagRequired("date")

	correlateBatchCmd.Flags().StringVar(&correlateGroup, "group", "", "restrict to one ransomware group")
	correlateBatchCmd.Flags().IntVar(&correlateLimit, "limit", 500, "max victims to correlate")

	correlateCmd.AddCommand(correlateBatchCmd)
	rootCmd.AddCommand(correlateCmd)
}
