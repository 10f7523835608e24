package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/espasatel/espasatel/internal/catalog"
)

var offersCmd = &cobra.Command{
	Use:   "offers <product>",
	Short: "Rank provider offers for a product, cheapest first",
	Long:  "Products: osago, kasko, kasko-lite, dsago, gap, green, accident. --power applies to osago only.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		product, err := catalog.ParseProduct(args[0])
		if err != nil {
			return err
		}
		power, _ := cmd.Flags().GetString("power")
		band, err := catalog.ParsePowerBand(power)
		if err != nil {
			return err
		}

		comps, err := loadComponents(cfg)
		if err != nil {
			return err
		}

		offers := comps.catalog.ComputeOffers(product, band)
		if len(offers) == 0 {
			fmt.Fprintln(os.Stderr, "No provider offers this product.")
			return nil
		}
		formatOffers(os.Stdout, product, offers)
		return nil
	},
}

func formatOffers(out io.Writer, product catalog.ProductCode, offers []catalog.Offer) {
	_, _ = fmt.Fprintf(out, "%s — %s\n\n", product.Title(), product.Note())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tPROVIDER\tRATING\tPAYOUT\tPRICE\tBADGE")
	_, _ = fmt.Fprintln(w, "-\t--------\t------\t------\t-----\t-----")
	for i, o := range offers {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%.1f\t%d%%\t%s\t%s\n",
			i+1,
			o.Provider.Name,
			o.Provider.Rating,
			o.Provider.PayoutRate,
			catalog.FormatRUB(o.Price),
			o.Provider.Badge,
		)
	}
	_ = w.Flush()
}

func init() {
	offersCmd.Flags().String("power", "", `engine power band, e.g. "121-150" or "150+"`)
	rootCmd.AddCommand(offersCmd)
}
