package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leakwatch/internal/model"
	"github.com/sells-group/leakwatch/internal/store"
)

var (
	classifyGroup string
	classifyLimit int
)

var classifyCmd = &cobra.Command{
	Use:   "classify [victim-id]",
	Short: "Identify the companies behind pending victim postings",
	Long:  "With a victim id, classifies that single record. Without one, classifies pending victims in batch.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.classifier == nil {
			return eris.New("AI classification requires LEAKWATCH_ANTHROPIC_KEY")
		}

		if len(args) == 1 {
			v, err := env.store.GetVictim(ctx, args[0])
			if err != nil {
				return err
			}
			return classifyOne(cmd, env, *v)
		}

		victims, err := env.store.ListVictims(ctx, model.VictimFilter{
			GroupName:    classifyGroup,
			ReviewStatus: model.ReviewPending,
			Limit:        classifyLimit,
		})
		if err != nil {
			return err
		}
		if len(victims) == 0 {
			fmt.Println("No pending victims to classify")
			return nil
		}

		items := env.classifier.ClassifyBatch(ctx, victims, cfg.Batch.Concurrency)

		var classified, failed int
		for _, item := range items {
			if item.Err != nil {
				failed++
				continue
			}
			err := env.store.UpdateClassification(ctx, item.VictimID, store.ClassificationUpdate{
				Confidence:   item.Classification.Confidence,
				AINotes:      item.Classification.Notes,
				CompanyName:  item.Classification.CompanyName,
				CompanyType:  item.Classification.CompanyType,
				Region:       item.Classification.Region,
				Country:      item.Classification.Country,
				SECRegulated: item.Classification.SECRegulated,
				SECCIK:       item.Classification.SECCIK,
			})
			if err != nil {
				zap.L().Warn("failed to persist classification",
					zap.String("victim_id", item.VictimID),
					zap.Error(err))
				failed++
				continue
			}
			classified++
		}

		fmt.Printf("Classified %d victims (%d failed)\n", classified, failed)
		return nil
	},
}

func classifyOne(cmd *cobra.Command, env *appEnv, v model.Victim) error {
	ctx := cmd.Context()

	result, err := env.classifier.ClassifyVictim(ctx, v)
	if err != nil {
		return err
	}

	err = env.store.UpdateClassification(ctx, v.ID, store.ClassificationUpdate{
		Confidence:   result.Confidence,
		AINotes:      result.Notes,
		CompanyName:  result.CompanyName,
		CompanyType:  result.CompanyType,
		Region:       result.Region,
		Country:      result.Country,
		SECRegulated: result.SECRegulated,
		SECCIK:       result.SECCIK,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s -> %s (%s, confidence %s)\n", v.VictimRaw, result.CompanyName, result.CompanyType, result.Confidence)
	return nil
}

var newsCmd = &cobra.Command{
	Use:   "news <victim-id>",
	Short: "Search public reporting for a classified victim's breach",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.classifier == nil {
			return eris.New("AI news search requires LEAKWATCH_ANTHROPIC_KEY")
		}

		v, err := env.store.GetVictim(ctx, args[0])
		if err != nil {
			return err
		}

		result, err := env.classifier.SearchNews(ctx, *v)
		if err != nil {
			return err
		}

		update := store.NewsUpdate{
			Found:                  result.Found,
			Summary:                result.Summary,
			Sources:                result.Sources,
			DisclosureAcknowledged: result.DisclosureAcknowledged,
		}
		if result.FirstNewsDate != "" {
			if t, err := time.ParseInLocation("2006-01-02", result.FirstNewsDate, time.UTC); err == nil {
				update.FirstNewsDate = &t
			}
		}
		if err := env.store.UpdateNewsCorrelation(ctx, v.ID, update); err != nil {
			return err
		}

		if !result.Found {
			fmt.Printf("No news coverage found for %s\n", v.CompanyName)
			return nil
		}
		fmt.Printf("News found for %s: %s\n", v.CompanyName, result.Summary)
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyGroup, "group", "", "restrict to one ransomware group")
	classifyCmd.Flags().IntVar(&classifyLimit, "limit", 50, "max victims to classify in batch")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(newsCmd)
}
