package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/pcran/pcran/pkg/types"
)

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func detected(sp types.SignalPoint) string {
	if sp.Detected {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

// PrintSummary renders res for a terminal. Colours follow color.NoColor.
func PrintSummary(w io.Writer, res *types.Result) {
	if len(res.Wells) > 0 {
		fmt.Fprintln(w, bold("Signal points:"))
		for _, wr := range res.Wells {
			fmt.Fprintf(w, "  %s %-6s x=%-10g Ct=%s  drfu=%s\n",
				detected(wr.Signal), wr.Well, wr.Independent,
				bold("%.2f", wr.Signal.X), bold("%.0f", wr.Signal.Y))
		}
		fmt.Fprintln(w)
	}

	reg := res.Regression
	fmt.Fprintln(w, bold("%s:", reg.Title))
	fmt.Fprintf(w, "  Fitted line: %s = %s*%s %+.2f\n", res.YLabel, bold("%.2f", reg.Slope), res.XLabel, reg.Intercept)
	fmt.Fprintf(w, "  alpha = %.4f ± %.4f\n", reg.Slope, reg.SlopeError)
	fmt.Fprintf(w, "  beta  = %.4f ± %.4f\n", reg.Intercept, reg.InterceptError)
	fmt.Fprintf(w, "  points: %d\n", len(reg.X))

	if res.Efficiency != nil {
		eff := *res.Efficiency
		c := color.New(color.Bold, color.FgGreen)
		if eff.Percent < 90 || eff.Percent > 110 {
			c = color.New(color.Bold, color.FgYellow)
		}
		fmt.Fprintf(w, "  Efficiency: %s\n", c.Sprintf("E = %.1f ± %.1f %%", eff.Percent, eff.ErrorPercent))
	}

	if res.Fingerprint != "" {
		fmt.Fprintf(w, "  run %s (fingerprint %s)\n", res.RunID, res.Fingerprint)
	}
}
