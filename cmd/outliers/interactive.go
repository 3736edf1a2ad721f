package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lc/outliers/internal/analyzer"
	"github.com/lc/outliers/internal/config"
	"github.com/lc/outliers/internal/engine"
	"github.com/lc/outliers/internal/log"
	"github.com/lc/outliers/internal/settings"
)

func newInteractiveCmd() *cobra.Command {
	var opts runOpts
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Load the configuration and run one cycle",
		Long: `Load the configuration files, build every analyzer found in the use-case
locations and run a single cycle. Use-case sections that cannot be built are
reported and skipped.`,
		Example: "outliers interactive --config /etc/outliers/outliers.conf --use-cases /etc/outliers/use_cases",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractive(cmd.Context(), os.Stdout, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runInteractive(ctx context.Context, out io.Writer, opts runOpts) error {
	s, err := settings.New(config.New(), opts.configs)
	if err != nil {
		return err
	}
	if dup := s.CheckNoDuplicateKey(); dup != nil {
		log.Warn("duplicate key in configuration, the last value is used", "error", dup)
	}

	eng := engine.New(s, analyzer.NewFactory(nil), nil, engine.WithUseCases(opts.useCases))
	analyzers, runErr := eng.RunOnce(ctx)

	renderSummary(out, s, analyzers)
	if runErr != nil {
		return fmt.Errorf("run cycle finished with errors: %w", runErr)
	}
	return nil
}

// renderSummary prints the whitelist state and a table of the analyzers.
func renderSummary(out io.Writer, s *settings.Settings, analyzers []analyzer.Analyzer) {
	bold := color.New(color.Bold)
	bold.Fprintln(out, "WHITELISTS:")
	fmt.Fprintf(out, "  literal sets: %d\n", len(s.WhitelistLiterals()))
	fmt.Fprintf(out, "  regex groups: %d\n", len(s.WhitelistRegexps()))
	for _, p := range s.FailingRegexps() {
		color.New(color.FgHiRed, color.Bold).Fprint(out, "  WARNING: ")
		color.New(color.FgYellow).Fprintf(out, "regular expression does not compile and is ignored: ")
		color.New(color.FgHiYellow, color.Bold).Fprintf(out, "%q\n", p)
	}
	fmt.Fprintln(out)

	if len(analyzers) == 0 {
		color.New(color.FgYellow).Fprintln(out, "No analyzers found.")
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Analyzer", "Model type", "Outlier type", "Run", "Test", "Extra settings"})
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
	)
	table.SetBorder(false)

	for _, a := range analyzers {
		outlierType, run, test := "-", "-", "-"
		if c, ok := a.(analyzer.Common); ok {
			cfg := c.CommonConfig()
			outlierType = cfg.OutlierType
			run = yesNo(cfg.RunModel)
			test = yesNo(cfg.TestModel)
		}
		table.Append([]string{
			a.Name(),
			a.ModelType(),
			outlierType,
			run,
			test,
			strconv.Itoa(len(a.ExtraModelSettings())),
		})
	}

	bold.Fprintln(out, "ANALYZERS:")
	table.Render()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
