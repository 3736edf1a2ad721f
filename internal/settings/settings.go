// Package settings holds the process-wide outliers settings: the merged
// configuration tree, the compiled whitelists and the general flags derived
// from it. A single *Settings is built at startup and passed to every
// consumer.
//
// Settings does no locking. Reconfiguration must happen from one control
// point between units of work (see internal/engine), never while consumers
// are reading.
package settings

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/lc/outliers/internal/config"
	"github.com/lc/outliers/internal/ini"
	"github.com/lc/outliers/internal/log"
	"github.com/lc/outliers/internal/metrics"
	"github.com/lc/outliers/internal/whitelist"
)

// Section and option names read by ProcessConfigurationFiles.
const (
	SectionGeneral           = "general"
	SectionDaemon            = "daemon"
	SectionWhitelistLiterals = "whitelist_literals"
	SectionWhitelistRegexps  = "whitelist_regexps"
	SectionDerivedFields     = "derivedfields"
	SectionAssets            = "assets"

	OptionPrintOutliersToConsole = "print_outliers_to_console"
	OptionESSaveResults          = "es_save_results"
	OptionSchedule               = "schedule"
)

// DefaultSchedule is used when daemon.schedule is not configured.
const DefaultSchedule = "@hourly"

// ErrMissingRequiredOption is wrapped by *MissingOptionError.
var ErrMissingRequiredOption = errors.New("missing required option")

// MissingOptionError reports a required option that is absent.
type MissingOptionError struct {
	Section string
	Option  string
}

func (e *MissingOptionError) Error() string {
	return fmt.Sprintf("%v: %s.%s", ErrMissingRequiredOption, e.Section, e.Option)
}

func (e *MissingOptionError) Unwrap() error { return ErrMissingRequiredOption }

// InvalidOptionError reports an option whose value cannot be used.
type InvalidOptionError struct {
	Section string
	Option  string
	Err     error
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid value for %s.%s: %v", e.Section, e.Option, e.Err)
}

func (e *InvalidOptionError) Unwrap() error { return e.Err }

// state is everything derived from one load. It is replaced as a whole.
type state struct {
	id                     string
	config                 *ini.File
	whitelist              *whitelist.Whitelist
	printOutliersToConsole bool
	esSaveResults          bool
	derivedFields          []ini.Option
	assets                 []ini.Option
	schedule               string
}

// Settings is the resolved configuration of the process.
type Settings struct {
	provider config.Provider
	metrics  *metrics.Metrics
	paths    []string

	cur        *state
	generation atomic.Uint64
}

// Opt configures Settings.
type Opt func(s *Settings)

// WithMetrics records loads and whitelist shape in m.
func WithMetrics(m *metrics.Metrics) Opt {
	return func(s *Settings) {
		s.metrics = m
	}
}

// New builds Settings from paths and processes them before returning.
// The error is fatal for the caller; an *config.UnreadableError maps to
// config.ExitCode.
func New(provider config.Provider, paths []string, opts ...Opt) (*Settings, error) {
	if provider == nil {
		provider = config.New()
	}
	s := &Settings{
		provider: provider,
		paths:    append([]string(nil), paths...),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.ProcessConfigurationFiles(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reconfigure replaces the configuration paths and processes them. On
// success every derived value comes from the new paths only; on error the
// previous paths and state are kept.
func (s *Settings) Reconfigure(paths []string) error {
	prev := s.paths
	s.paths = append([]string(nil), paths...)
	if err := s.ProcessConfigurationFiles(); err != nil {
		s.paths = prev
		return err
	}
	return nil
}

// ProcessConfigurationFiles loads the configured paths and rebuilds all
// derived state. The new state is installed only once it is complete.
func (s *Settings) ProcessConfigurationFiles() error {
	next, err := s.process()
	s.metrics.ObserveReload(err)
	if err != nil {
		return err
	}

	s.cur = next
	s.generation.Inc()
	s.metrics.SetWhitelist(len(next.whitelist.Literals()), len(next.whitelist.Regexps()), len(next.whitelist.FailingPatterns()))

	if failing := next.whitelist.FailingPatterns(); len(failing) > 0 {
		log.Warn("settings: whitelist regular expressions could not be compiled and are ignored",
			"load_id", next.id, "patterns", failing)
	}
	log.Info("settings: configuration loaded",
		"load_id", next.id,
		"paths", s.paths,
		"generation", s.generation.Load(),
		"literal_sets", len(next.whitelist.Literals()),
		"regex_groups", len(next.whitelist.Regexps()),
	)
	return nil
}

func (s *Settings) process() (*state, error) {
	tree, err := s.provider.Load(s.paths)
	if err != nil {
		return nil, err
	}

	st := &state{
		id:     uuid.NewString(),
		config: tree,
		whitelist: whitelist.New(
			tree.Values(SectionWhitelistLiterals),
			tree.Values(SectionWhitelistRegexps),
		),
	}

	st.printOutliersToConsole, err = optionalBool(tree, SectionGeneral, OptionPrintOutliersToConsole, false)
	if err != nil {
		return nil, err
	}

	// required, absence is fatal
	st.esSaveResults, err = requiredBool(tree, SectionGeneral, OptionESSaveResults)
	if err != nil {
		return nil, err
	}

	st.derivedFields = optionalItems(tree, SectionDerivedFields)
	st.assets = optionalItems(tree, SectionAssets)

	st.schedule = DefaultSchedule
	if v, err := tree.Get(SectionDaemon, OptionSchedule); err == nil && v != "" {
		st.schedule = v
	}
	return st, nil
}

// CheckNoDuplicateKey re-reads the configuration paths strictly and returns
// the first *ini.DuplicateSectionError or *ini.DuplicateOptionError, or nil.
// It never changes the loaded state.
func (s *Settings) CheckNoDuplicateKey() error {
	return s.provider.ValidateNoDuplicates(s.paths)
}

// ConfigPaths returns the active configuration paths.
func (s *Settings) ConfigPaths() []string { return append([]string(nil), s.paths...) }

// Config returns the merged configuration tree.
func (s *Settings) Config() *ini.File { return s.cur.config }

// LoadID identifies the current load in logs.
func (s *Settings) LoadID() string { return s.cur.id }

// Generation counts successful loads, starting at 1.
func (s *Settings) Generation() uint64 { return s.generation.Load() }

// Whitelist returns the compiled whitelists.
func (s *Settings) Whitelist() *whitelist.Whitelist { return s.cur.whitelist }

// WhitelistLiterals returns the literal sets in configuration order.
func (s *Settings) WhitelistLiterals() []whitelist.LiteralSet { return s.cur.whitelist.Literals() }

// WhitelistRegexps returns the regex groups in configuration order.
func (s *Settings) WhitelistRegexps() []whitelist.RegexGroup { return s.cur.whitelist.Regexps() }

// FailingRegexps returns the whitelist patterns that did not compile.
func (s *Settings) FailingRegexps() []string { return s.cur.whitelist.FailingPatterns() }

// PrintOutliersToConsole reports general.print_outliers_to_console.
func (s *Settings) PrintOutliersToConsole() bool { return s.cur.printOutliersToConsole }

// ESSaveResults reports general.es_save_results.
func (s *Settings) ESSaveResults() bool { return s.cur.esSaveResults }

// DerivedFields returns the derivedfields section, empty if absent.
func (s *Settings) DerivedFields() []ini.Option { return s.cur.derivedFields }

// Assets returns the assets section, empty if absent.
func (s *Settings) Assets() []ini.Option { return s.cur.assets }

// DaemonSchedule returns daemon.schedule, DefaultSchedule if absent.
func (s *Settings) DaemonSchedule() string { return s.cur.schedule }

// IsWhitelisted reports whether the document matches the active whitelists.
func (s *Settings) IsWhitelisted(doc map[string]any) bool {
	return s.cur.whitelist.MatchDocument(doc)
}

func optionalBool(tree *ini.File, section, option string, def bool) (bool, error) {
	v, err := tree.Get(section, option)
	if errors.Is(err, ini.ErrNoSection) || errors.Is(err, ini.ErrNoOption) {
		return def, nil
	}
	if err != nil {
		return false, err
	}
	b, err := ini.ParseBool(v)
	if err != nil {
		return false, &InvalidOptionError{Section: section, Option: option, Err: err}
	}
	return b, nil
}

func requiredBool(tree *ini.File, section, option string) (bool, error) {
	v, err := tree.Get(section, option)
	if errors.Is(err, ini.ErrNoSection) || errors.Is(err, ini.ErrNoOption) {
		return false, &MissingOptionError{Section: section, Option: option}
	}
	if err != nil {
		return false, err
	}
	b, err := ini.ParseBool(v)
	if err != nil {
		return false, &InvalidOptionError{Section: section, Option: option, Err: err}
	}
	return b, nil
}

func optionalItems(tree *ini.File, section string) []ini.Option {
	items, err := tree.Items(section)
	if err != nil {
		return []ini.Option{}
	}
	return items
}
