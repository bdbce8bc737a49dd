package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pcran/pcran/pkg/config"
	"github.com/pcran/pcran/pkg/ingest"
	"github.com/pcran/pcran/pkg/report"
	"github.com/pcran/pcran/pkg/utils/ptr"
)

func NewRunCommand() *cobra.Command {
	var (
		flags    analysisFlags
		asJSON   bool
		noOutput bool
	)

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the configured analysis",
		GroupID: gAnalysis,
		Long: `Run the configured analysis.

In rampl mode every configured well of the input table is fitted, its signal
point detected and the signal points regressed against the configured x
values. In lfd mode the input is a ready two-column point file.

Results are written to the output directory: the signal table (cts.tsv), the
compressed curve archive (curves.json.zst by default) and result.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(flags.overrides(cmd))
			if err != nil {
				return err
			}

			res, err := analyzeConfigured(cmd.Context(), conf)
			if err != nil {
				return err
			}

			if !noOutput {
				if err := writeOutputs(conf, res); err != nil {
					return err
				}
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			report.PrintSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&noOutput, "no-output", false, "do not write result files")

	return cmd
}

func NewRegressCommand() *cobra.Command {
	var (
		flags  analysisFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "regress <points-file>",
		Short:   "Fit a calibration line to a ready point file",
		GroupID: gAnalysis,
		Long: `Fit a calibration line to a ready point file.

The file has one "x y" pair per line; blank lines and lines starting with #
are ignored.`,
		Example: `  pcran regress cts.txt
  pcran regress --method hi2 --no-eff cts.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := flags.overrides(cmd)
			o.Mode = ptr.To(config.ModeLinearFit)
			o.Filename = &args[0]

			conf, err := loadConfig(o)
			if err != nil {
				return err
			}

			res, err := analyzeConfigured(cmd.Context(), conf)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			report.PrintSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}

func NewFitCommand() *cobra.Command {
	var (
		flags  analysisFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "fit <table> <well>",
		Short:   "Fit the amplification curve of a single well",
		GroupID: gAnalysis,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, well := args[0], args[1]

			o := flags.overrides(cmd)
			o.Wells = []string{well}
			o.X = []float64{0}

			conf, err := loadConfig(o)
			if err != nil {
				return err
			}

			tbl, err := ingest.ReadTable(path, conf.Sheet())
			if err != nil {
				return err
			}
			s, ok := tbl.Samples[well]
			if !ok {
				return fmt.Errorf("well %s not found in %s (wells: %v)", well, path, tbl.Wells)
			}

			p, err := newPipeline(conf)
			if err != nil {
				return err
			}
			wr, err := p.ProcessWell(well, s)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), wr)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d points, %d iterations\n", wr.Well, len(s), wr.Iterations)
			fmt.Fprintf(out, "  A = %.6g  B = %.6g  x0 = %.4f  sigma = %.4f\n", wr.Params.A, wr.Params.B, wr.Params.X0, wr.Params.Sigma)
			if wr.Signal.Detected {
				fmt.Fprintf(out, "  Ct = %.2f  drfu = %.0f\n", wr.Signal.X, wr.Signal.Y)
			} else {
				fmt.Fprintln(out, "  no signal detected")
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the well result as JSON")

	return cmd
}

func NewInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "inspect <curves-file>",
		Short:   "Show the wells stored in a curve archive",
		GroupID: gAnalysis,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := report.ReadCurvesFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s (%s, %d wells)\n", a.RunID, a.Codec, len(a.Wells))

			wells := a.Wells
			sort.SliceStable(wells, func(i, j int) bool { return wells[i].Well < wells[j].Well })
			for _, w := range wells {
				ct := "-"
				if w.Signal.Detected {
					ct = fmt.Sprintf("%.2f", w.Signal.X)
				}
				fmt.Fprintf(out, "  %-6s points=%-4d Ct=%-8s x0=%.2f sigma=%.2f\n", w.Well, len(w.Sample), ct, w.Params.X0, w.Params.Sigma)
			}
			return nil
		},
	}
}
