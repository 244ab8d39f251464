package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cassidypignatello/bangun/internal/bom"
	"github.com/cassidypignatello/bangun/internal/export"
	"github.com/cassidypignatello/bangun/internal/model"
)

var (
	estimateXLSX     string
	estimateType     string
	estimateLocation string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <description>",
	Short: "Generate and price a bill of materials for a project description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Generator == nil {
			return eris.New("estimate requires BANGUN_ANTHROPIC_KEY for BOM generation")
		}

		description := strings.Join(args, " ")
		fmt.Println("Generating bill of materials...")
		materials, err := env.Generator.Generate(ctx, description)
		if err != nil {
			return err
		}
		fmt.Printf("Pricing %d materials:\n", len(materials))

		decisions, err := env.Enricher.EnrichAll(ctx, materials, func(current, total int, name, source string) {
			if source == bom.StatusSearching {
				fmt.Printf("  [%d/%d] %-40s ", current, total, truncate(name, 40))
			} else {
				fmt.Println(source)
			}
		})
		if err != nil {
			return err
		}

		summary := env.Enricher.Summarize(decisions)
		printEstimate(decisions, summary)

		project := &model.Project{
			ID:            uuid.NewString(),
			Status:        model.ProjectStatusEstimated,
			ProjectType:   estimateType,
			Description:   description,
			Location:      estimateLocation,
			BOM:           decisions,
			MaterialTotal: summary.MaterialTotal,
			LaborTotal:    summary.LaborTotal,
			GrandTotal:    summary.GrandTotal,
			CreatedAt:     time.Now().UTC(),
			UpdatedAt:     time.Now().UTC(),
		}
		if err := env.Store.SaveProject(ctx, project); err != nil {
			zap.L().Warn("estimate not persisted", zap.Error(err))
		} else {
			fmt.Printf("\nSaved estimate %s\n", project.ID)
		}

		if estimateXLSX != "" {
			if err := export.WriteBOM(estimateXLSX, project); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", estimateXLSX)
		}

		return nil
	},
}

// printEstimate renders the priced BOM with Indonesian digit grouping.
func printEstimate(decisions []model.PriceDecision, summary bom.Summary) {
	p := message.NewPrinter(language.Indonesian)

	fmt.Println()
	p.Printf("%-40s %8s %-8s %14s %14s %-12s %5s\n",
		"Material", "Qty", "Unit", "Unit Price", "Total", "Source", "Conf")
	for _, d := range decisions {
		p.Printf("%-40s %8.1f %-8s Rp%12d Rp%12d %-12s %5.2f\n",
			truncate(d.MaterialName, 40), d.Quantity, d.Unit,
			d.UnitPriceIDR, d.TotalPriceIDR, string(d.Source), d.Confidence)
	}
	fmt.Println()
	p.Printf("Material total: Rp%d\n", summary.MaterialTotal)
	p.Printf("Labor total:    Rp%d\n", summary.LaborTotal)
	p.Printf("Grand total:    Rp%d\n", summary.GrandTotal)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func init() {
	estimateCmd.Flags().StringVar(&estimateXLSX, "xlsx", "", "also write the priced BOM to an XLSX file")
	estimateCmd.Flags().StringVar(&estimateType, "type", "general", "project type")
	estimateCmd.Flags().StringVar(&estimateLocation, "location", "", "project location")
	rootCmd.AddCommand(estimateCmd)
}
