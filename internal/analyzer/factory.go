package analyzer

import (
	"errors"
	"fmt"

	"github.com/lc/outliers/internal/filesys"
	"github.com/lc/outliers/internal/ini"
	"github.com/lc/outliers/internal/log"
	"github.com/lc/outliers/internal/metrics"
)

// Factory builds analyzers from use-case files using a Registry.
type Factory struct {
	fs       filesys.ReadFS
	registry *Registry
	metrics  *metrics.Metrics
}

// FactoryOpt configures a Factory.
type FactoryOpt func(f *Factory)

// WithMetrics records created and skipped analyzers in m.
func WithMetrics(m *metrics.Metrics) FactoryOpt {
	return func(f *Factory) {
		f.metrics = m
	}
}

// WithFS reads use-case files through fs instead of the local disk.
func WithFS(fs filesys.ReadFS) FactoryOpt {
	return func(f *Factory) {
		f.fs = fs
	}
}

// NewFactory returns a factory resolving model types through registry.
// A nil registry means DefaultRegistry().
func NewFactory(registry *Registry, opts ...FactoryOpt) *Factory {
	if registry == nil {
		registry = DefaultRegistry()
	}
	f := &Factory{
		fs:       filesys.OS(),
		registry: registry,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Registry returns the registry the factory resolves model types with.
func (f *Factory) Registry() *Registry { return f.registry }

// Options controls CreateMulti.
type Options struct {
	// StrictParse rejects duplicate sections and duplicate options inside a
	// section; the whole file fails.
	StrictParse bool
	// SkipInvalidSections drops a section that cannot be built (unknown
	// model_type, missing or invalid option) instead of failing the batch.
	SkipInvalidSections bool
}

// Option configures a CreateMulti call.
type Option func(o *Options)

// WithStrict sets both policies: strict parsing and failing the batch on
// the first invalid section when true, tolerant parsing and skipping invalid
// sections when false.
func WithStrict(strict bool) Option {
	return func(o *Options) {
		o.StrictParse = strict
		o.SkipInvalidSections = !strict
	}
}

// WithStrictParse sets only the duplicate policy.
func WithStrictParse(strict bool) Option {
	return func(o *Options) {
		o.StrictParse = strict
	}
}

// WithSkipInvalidSections sets only the invalid-section policy.
func WithSkipInvalidSections(skip bool) Option {
	return func(o *Options) {
		o.SkipInvalidSections = skip
	}
}

// Create builds the single analyzer defined by the use-case file at path.
// The file is parsed strictly and must define exactly one analyzer section.
func (f *Factory) Create(path string) (Analyzer, error) {
	doc, err := f.parse(path, true)
	if err != nil {
		return nil, err
	}
	sections := analyzerSections(doc)
	switch len(sections) {
	case 0:
		return nil, fmt.Errorf("%s: %w", path, ErrNoAnalyzerSection)
	case 1:
	default:
		return nil, fmt.Errorf("%s: %w (%d found)", path, ErrMultipleAnalyzerSections, len(sections))
	}
	return f.build(path, doc, sections[0])
}

// CreateMulti builds one analyzer per analyzer section of the use-case file
// at path, in declaration order. A section defines an analyzer when it has a
// model_type option; a file without any returns an empty slice.
//
// By default the call is strict: duplicates in the file or any section that
// cannot be built fail the whole call and no analyzers are returned. With
// WithStrict(false) duplicates resolve to the last value and invalid
// sections are logged and skipped.
func (f *Factory) CreateMulti(path string, opts ...Option) ([]Analyzer, error) {
	o := Options{StrictParse: true}
	for _, opt := range opts {
		opt(&o)
	}

	doc, err := f.parse(path, o.StrictParse)
	if err != nil {
		return nil, err
	}

	sections := analyzerSections(doc)
	analyzers := make([]Analyzer, 0, len(sections))
	for _, section := range sections {
		a, err := f.build(path, doc, section)
		if err != nil {
			if !o.SkipInvalidSections {
				return nil, err
			}
			log.Warn("analyzer: skipping invalid use-case section",
				"path", path, "section", section, "error", err)
			f.metrics.SectionSkipped(skipReason(err))
			continue
		}
		analyzers = append(analyzers, a)
	}
	return analyzers, nil
}

func (f *Factory) build(path string, doc *ini.File, section string) (Analyzer, error) {
	items, err := doc.Items(section)
	if err != nil {
		return nil, &SectionError{Path: path, Section: section, Err: err}
	}
	a, err := f.registry.Build(section, items)
	if err != nil {
		return nil, &SectionError{Path: path, Section: section, Err: unwrapSection(err)}
	}
	f.metrics.AnalyzerCreated(a.ModelType())
	log.Debug("analyzer: created", "path", path, "section", section, "model_type", a.ModelType())
	return a, nil
}

func (f *Factory) parse(path string, strict bool) (*ini.File, error) {
	data, err := f.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading use-case file: %w", err)
	}
	doc, err := ini.ParseBytes(data, path, ini.Options{Strict: strict})
	if err != nil {
		return nil, fmt.Errorf("parsing use-case file: %w", err)
	}
	return doc, nil
}

// analyzerSections returns the sections that carry a model_type option.
func analyzerSections(doc *ini.File) []string {
	var out []string
	for _, s := range doc.Sections() {
		if _, err := doc.Get(s, ModelTypeKey); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// unwrapSection strips the registry's SectionError so the factory can
// re-wrap it with the file path.
func unwrapSection(err error) error {
	if se, ok := err.(*SectionError); ok {
		return se.Err
	}
	return err
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownModelType):
		return "unknown_model_type"
	case errors.Is(err, ErrMissingRequiredOption):
		return "missing_option"
	case errors.Is(err, ErrInvalidOption):
		return "invalid_option"
	default:
		return "other"
	}
}
