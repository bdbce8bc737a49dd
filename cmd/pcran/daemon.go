package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pcran/pcran/pkg/client"
	"github.com/pcran/pcran/pkg/config"
	"github.com/pcran/pcran/pkg/daemon"
	"github.com/pcran/pcran/pkg/events"
	"github.com/pcran/pcran/pkg/ingest"
	"github.com/pcran/pcran/pkg/report"
	"github.com/pcran/pcran/pkg/version"
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "daemon",
		Short:   "Run the pcran daemon in the foreground",
		GroupID: gDaemon,
		Long: `Run the pcran daemon in the foreground.

The daemon serves analyses over HTTP, streams run events and, when the config
has a schedule, re-runs the configured analysis on it. Send SIGHUP to reload
the config.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("pcran daemon starting")
			return daemon.Run(configPath, listenAddr)
		},
	}
}

func daemonClient() (*client.Client, error) {
	conf, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}
	return newClient(conf)
}

func NewSubmitCommand() *cobra.Command {
	var (
		flags  analysisFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "submit <table>",
		Short:   "Analyse a table in the running daemon",
		GroupID: gDaemon,
		Long: `Analyse a table in the running daemon.

The table is read locally and sent to the daemon together with the local
config, so wells and x values come from this machine.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(flags.overrides(cmd))
			if err != nil {
				return err
			}
			if err := config.Validate(conf); err != nil {
				return err
			}

			tbl, err := ingest.ReadTable(args[0], conf.Sheet())
			if err != nil {
				return err
			}

			c, err := newClient(conf)
			if err != nil {
				return err
			}
			res, err := c.Analyze(cmd.Context(), tbl.Samples, conf.Raw())
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

func NewLastCommand() *cobra.Command {
	var (
		asJSON bool
		now    bool
	)

	cmd := &cobra.Command{
		Use:     "last",
		Short:   "Show the daemon's latest configured run",
		GroupID: gDaemon,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := daemonClient()
			if err != nil {
				return err
			}

			get := c.GetLast
			if now {
				get = c.RunNow
			}
			res, err := get(cmd.Context())
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("the daemon has not run yet; use --now to run it")
			}
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

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&now, "now", false, "run the configured analysis now instead of showing the last result")

	return cmd
}

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"sch", "sched"},
		Short:   "Show the daemon's analysis schedule",
		GroupID: gDaemon,
		Long: `Show the daemon's analysis schedule.

The schedule is the "schedule" field of the daemon's config, a cron expression
such as '0 30 6 * * *' or '@every 1h'. Edit the config and send the daemon a
SIGHUP to change it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := daemonClient()
			if err != nil {
				return err
			}
			s, err := c.GetSchedule(cmd.Context())
			if err != nil {
				return err
			}
			printSchedule(cmd, s.Schedule, s.NextRun)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "skip",
		Short: "Skip the next scheduled run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := daemonClient()
			if err != nil {
				return err
			}
			s, err := c.SkipSchedule(cmd.Context())
			if err != nil {
				return err
			}
			printSchedule(cmd, s.Schedule, s.NextRun)
			return nil
		},
	})

	return cmd
}

func printSchedule(cmd *cobra.Command, expr, next string) {
	if expr == "" {
		cmd.Println("No schedule configured.")
		return
	}
	cmd.Printf("Schedule: %s\n", expr)
	if t, err := time.Parse(time.RFC3339, next); err == nil {
		cmd.Printf("Next run: %s (in %s)\n", t.Local().Format(time.DateTime), time.Until(t).Round(time.Second))
	}
}

func NewEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "events",
		Short:   "Follow the daemon's run events",
		GroupID: gDaemon,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := daemonClient()
			if err != nil {
				return err
			}
			// Probe once so an absent daemon is reported instead of an empty stream.
			if _, err := c.GetVersion(cmd.Context()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for ev := range c.SubscribeEvents(ctx) {
				printEvent(cmd, ev)
			}
			return nil
		},
	}
}

func printEvent(cmd *cobra.Command, ev events.Event) {
	switch ev.Name {
	case events.WellProcessed:
		p, err := events.DecodeAs[events.WellProcessedEvent](ev)
		if err != nil {
			break
		}
		cmd.Printf("[%s] %s fitted: Ct = %.2f; drfu = %.0f\n", p.RunID, p.Well, p.Ct, p.DRFU)
		return
	case events.RunCompleted:
		p, err := events.DecodeAs[events.RunCompletedEvent](ev)
		if err != nil {
			break
		}
		line := fmt.Sprintf("[%s] done: %s slope %.4f intercept %.4f", p.RunID, p.Method, p.Slope, p.Intercept)
		if p.Efficiency != nil {
			line += fmt.Sprintf(" E = %.1f %%", *p.Efficiency)
		}
		cmd.Println(line)
		return
	case events.RunFailed:
		p, err := events.DecodeAs[events.RunFailedEvent](ev)
		if err != nil {
			break
		}
		cmd.Printf("[%s] failed: %s\n", p.RunID, p.Error)
		return
	}
	cmd.Printf("%s %s\n", ev.Name, string(ev.Data))
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}
