package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bangun/internal/model"
)

var (
	refreshLimit  int
	refreshMaxAge int
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-scrape the stalest persisted material prices",
	Long:  "Finds price records older than the freshness window and re-resolves them through a live scrape, bounded per run to control actor spend.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		maxAge := time.Duration(refreshMaxAge) * 24 * time.Hour
		stale, err := env.Store.StaleMaterials(ctx, maxAge, refreshLimit)
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			fmt.Println("No stale materials.")
			return nil
		}

		refreshed := 0
		for _, rec := range stale {
			if err := ctx.Err(); err != nil {
				return err
			}

			query := rec.SearchQuery
			if query == "" {
				query = rec.NameID
			}

			// A stale Tier-2 record never satisfies the cache, so this
			// forces a live scrape and the persist that follows it.
			products, err := env.Cache.FetchPrices(ctx, query, cfg.Apify.MaxResults)
			if err != nil {
				zap.L().Warn("refresh scrape failed",
					zap.String("material", rec.NameID),
					zap.Error(err),
				)
				continue
			}
			refreshed++
			fmt.Printf("  %-40s %d listings\n", truncate(displayName(rec), 40), len(products))
		}

		fmt.Printf("Refreshed %d of %d stale materials.\n", refreshed, len(stale))
		return nil
	},
}

func displayName(rec model.PriceRecord) string {
	if rec.NameID != "" {
		return rec.NameID
	}
	return rec.NormalizedName
}

func init() {
	refreshCmd.Flags().IntVar(&refreshLimit, "limit", 20, "maximum materials to refresh per run")
	refreshCmd.Flags().IntVar(&refreshMaxAge, "max-age", 7, "refresh records older than this many days")
	rootCmd.AddCommand(refreshCmd)
}
