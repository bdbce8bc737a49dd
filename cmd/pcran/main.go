package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pcran/pcran/pkg/client"
	"github.com/pcran/pcran/pkg/pcrerr"
)

var (
	logLevel   = "info"
	configPath = "pcran.json"
	listenAddr = ""
)

var (
	gAnalysis     = "Analysis:"
	gDaemon       = "Daemon:"
	commandGroups = []string{
		gAnalysis,
		gDaemon,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	var perr *pcrerr.Error
	switch {
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: pcran daemon is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'pcran daemon' or point --listen at a running one.")
	case errors.Is(err, client.ErrPermissionDenied):
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Check the permissions of the daemon socket")
	case errors.As(err, &perr):
		fmt.Fprintf(os.Stderr, "\nAnalysis failed: %s\n", perr.Kind)
		if perr.Stage != "" {
			fmt.Fprintf(os.Stderr, "  stage:  %s\n", perr.Stage)
		}
		if perr.Well != "" {
			fmt.Fprintf(os.Stderr, "  well:   %s\n", perr.Well)
		}
		if perr.Method != "" {
			fmt.Fprintf(os.Stderr, "  method: %s\n", perr.Method)
		}
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pcran",
		Short: "pcran builds qPCR calibration curves from amplification data",
		Long: `pcran builds qPCR calibration curves from amplification data.

It fits a sigmoid to the amplification trace of every well, locates each
well's signal point (Ct), regresses the signal points against the known
concentrations and reports the PCR efficiency.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVarP(&configPath, "config", "c", configPath, "config file path (.json, .yaml or .yml)")
	globalFlags.StringVar(&listenAddr, "listen", "", "daemon address, e.g. unix:///tmp/pcran.sock or 127.0.0.1:8787 (default from config)")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewRunCommand(),
		NewRegressCommand(),
		NewFitCommand(),
		NewInspectCommand(),
		NewDaemonCommand(),
		NewSubmitCommand(),
		NewLastCommand(),
		NewScheduleCommand(),
		NewEventsCommand(),
		NewVersionCommand(),
	)

	return cmd
}
