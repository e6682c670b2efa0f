package app

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dsa110/dsa110-pointing/internal/astro"
	"github.com/dsa110/dsa110-pointing/internal/catalog"
	"github.com/dsa110/dsa110-pointing/internal/transit"
)

const maxScheduleHours = 336 // two weeks

var transitsCmd = &cobra.Command{
	Use:   "transits",
	Short: "Print the calibrator transit schedule",
	Long: `Transits expands the meridian transit schedule of every catalog
calibrator over the requested horizon and prints it as a table.`,
	RunE: runTransits,
}

func init() {
	transitsCmd.Flags().Float64("hours", 24, "schedule horizon in hours")
}

func runTransits(cmd *cobra.Command, _ []string) error {
	hours, err := cmd.Flags().GetFloat64("hours")
	if err != nil {
		return err
	}
	if hours <= 0 || hours > maxScheduleHours {
		return fmt.Errorf("hours must be in (0, %d], got %v", maxScheduleHours, hours)
	}

	loc := astro.DSA110
	cat := catalog.Default()
	now := time.Now().UTC()
	preds := transit.Schedule(cat, time.Duration(hours*float64(time.Hour)), now, loc)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "LST %.4f at %s, %d transits in the next %.1fh\n\n",
		astro.LST(now, loc.LonDeg), now.Format(time.RFC3339), len(preds), hours)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CALIBRATOR\tRA_DEG\tDEC_DEG\tTRANSIT_UTC\tWAIT\tELEV_DEG\tSTATUS")
	for _, p := range preds {
		// SecondsToTransit is relative to the expansion step, not to now.
		wait := p.TransitUTC.Sub(now).Round(time.Second)
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%s\t%s\t%.2f\t%s\n",
			p.Calibrator, p.RADeg, p.DecDeg,
			p.TransitUTC.Format(time.RFC3339), wait, p.ElevationDeg, p.Status)
	}
	return w.Flush()
}
