package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cassidypignatello/bangun/internal/model"
)

var (
	priceQuantity float64
	priceUnit     string
	priceCategory string
	priceLocal    bool
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Resolve marketplace prices for a single material",
}

var priceResolveCmd = &cobra.Command{
	Use:   "resolve <material name>",
	Short: "Walk the full fallback chain for one material",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		d := env.Resolver.Resolve(ctx, model.MaterialRequest{
			Name:     strings.Join(args, " "),
			Quantity: priceQuantity,
			Unit:     priceUnit,
			Category: priceCategory,
		})

		p := message.NewPrinter(language.Indonesian)
		p.Printf("%s\n", d.MaterialName)
		p.Printf("  unit price: Rp%d / %s\n", d.UnitPriceIDR, d.Unit)
		p.Printf("  total:      Rp%d (qty %.1f)\n", d.TotalPriceIDR, d.Quantity)
		p.Printf("  source:     %s (confidence %.2f)\n", string(d.Source), d.Confidence)
		if d.ProductsAnalyzed > 0 {
			p.Printf("  listings:   %d analyzed, %d qualified\n", d.ProductsAnalyzed, d.ProductsQualified)
		}
		if d.MarketplaceURL != "" {
			p.Printf("  url:        %s\n", d.MarketplaceURL)
		}
		return nil
	},
}

var priceBestCmd = &cobra.Command{
	Use:   "best <material name>",
	Short: "Pick the single best-seller listing for a material",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		winner, err := env.Resolver.BestSeller(ctx, strings.Join(args, " "), priceQuantity, priceLocal)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.Indonesian)
		p.Printf("%s\n", winner.Product.Name)
		p.Printf("  price:    Rp%d\n", winner.Product.PriceIDR)
		p.Printf("  seller:   %s (%s, %s)\n",
			winner.Product.SellerName, winner.Product.SellerLocation, string(winner.Product.SellerTier))
		p.Printf("  rating:   %.1f, sold %d\n", winner.Product.Rating, winner.Product.SoldCount)
		p.Printf("  score:    %.4f (rating %.2f / sales %.2f / price %.2f)\n",
			winner.TotalScore, winner.RatingScore, winner.SalesScore, winner.PriceScore)
		if winner.Product.URL != "" {
			fmt.Printf("  url:      %s\n", winner.Product.URL)
		}
		return nil
	},
}

func init() {
	priceCmd.PersistentFlags().Float64Var(&priceQuantity, "qty", 1, "required quantity")
	priceCmd.PersistentFlags().StringVar(&priceUnit, "unit", "pcs", "unit of measure")
	priceResolveCmd.Flags().StringVar(&priceCategory, "category", "", "material category for the estimate fallback")
	priceBestCmd.Flags().BoolVar(&priceLocal, "local", false, "prefer Bali-region sellers")
	priceCmd.AddCommand(priceResolveCmd, priceBestCmd)
	rootCmd.AddCommand(priceCmd)
}
