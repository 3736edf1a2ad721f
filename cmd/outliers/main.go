// Command outliers loads the outliers configuration and use-case files and
// runs the analyzers they define.
//
// Usage:
//
//	outliers interactive --config <file> --use-cases <path>   - Load once, run one cycle and exit
//	outliers daemon      --config <file> --use-cases <path>   - Run cycles on the configured schedule
//	outliers tests       --config <file> --use-cases <path>   - Validate configuration and use cases
//	outliers version                                          - Show version information
//
// --config and --use-cases may be repeated. Configuration files are merged
// in the given order, the last file winning for the same option. A use-case
// location is a file, a directory searched for *.conf files, or a glob
// pattern where "**" crosses directories.
//
// The exit status is 2 when configuration files cannot be loaded and 1 for
// any other failure.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lc/outliers/internal/buildinfo"
	"github.com/lc/outliers/internal/config"
	"github.com/lc/outliers/internal/log"
)

// runOpts holds the flags shared by the run modes.
type runOpts struct {
	configs  []string
	useCases []string
}

func (o *runOpts) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&o.configs, "config", "c", nil, "configuration file, repeatable; later files win")
	cmd.Flags().StringArrayVarP(&o.useCases, "use-cases", "u", nil, "use-case file, directory or glob, repeatable")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("use-cases")
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		reportError(err)
		log.Sync()
		os.Exit(exitCode(err))
	}
	log.Sync()
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "outliers",
		Short: "Outlier detection configuration runner",
		Long: `outliers resolves layered configuration files into general settings and
whitelists, builds the analyzers described by use-case files and runs them
once, on a schedule, or only validates them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if logLevel == "" {
				return nil
			}
			return log.SetLevel(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	// ---- version command ----
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("version: %s\n", buildinfo.Version)
			fmt.Printf("commit: %s\n", buildinfo.Commit)
		},
	}

	root.AddCommand(newInteractiveCmd(), newDaemonCmd(), newTestsCmd(), versionCmd)
	return root
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var ue *config.UnreadableError
	if errors.As(err, &ue) {
		return config.ExitCode
	}
	return 1
}

func reportError(err error) {
	var ue *config.UnreadableError
	if errors.As(err, &ue) {
		// already lists every path
		color.New(color.FgHiRed, color.Bold).Fprint(os.Stderr, ue.Error())
		return
	}
	color.New(color.FgHiRed, color.Bold).Fprint(os.Stderr, "ERROR: ")
	fmt.Fprintln(os.Stderr, err)
}
