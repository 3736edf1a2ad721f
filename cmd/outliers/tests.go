package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/lc/outliers/internal/analyzer"
	"github.com/lc/outliers/internal/config"
	"github.com/lc/outliers/internal/filesys"
	"github.com/lc/outliers/internal/settings"
)

func newTestsCmd() *cobra.Command {
	var opts runOpts
	cmd := &cobra.Command{
		Use:   "tests",
		Short: "Validate configuration and use-case files",
		Long: `Load the configuration files and build every analyzer of every use-case file
without running them. Duplicate sections or options, use-case sections that
cannot be built and whitelist expressions that do not compile are all
reported; the command fails if any were found.`,
		Example: "outliers tests --config outliers.conf --use-cases use_cases/",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTests(os.Stdout, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runTests(out io.Writer, opts runOpts) error {
	s, err := settings.New(config.New(), opts.configs)
	if err != nil {
		return err
	}

	var errs error
	errs = multierr.Append(errs, s.CheckNoDuplicateKey())
	if failing := s.FailingRegexps(); len(failing) > 0 {
		errs = multierr.Append(errs, fmt.Errorf("whitelist regular expressions do not compile: %q", failing))
	}

	paths, err := analyzer.Discover(filesys.OS(), opts.useCases)
	errs = multierr.Append(errs, err)

	factory := analyzer.NewFactory(nil)
	ok := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgHiRed, color.Bold)
	for _, p := range paths {
		analyzers, err := factory.CreateMulti(p)
		if err != nil {
			fail.Fprint(out, "✗ ")
			fmt.Fprintln(out, p)
			errs = multierr.Append(errs, err)
			continue
		}
		ok.Fprint(out, "✓ ")
		fmt.Fprintf(out, "%s (%d analyzers)\n", p, len(analyzers))
	}

	problems := multierr.Errors(errs)
	if len(problems) == 0 {
		ok.Fprintln(out, "All configuration and use-case files are valid.")
		return nil
	}
	fmt.Fprintln(out)
	fail.Fprintf(out, "%d problem(s) found:\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(out, "\t - %v\n", p)
	}
	return fmt.Errorf("validation failed with %d problem(s)", len(problems))
}
