// Package analyzer turns use-case files into analyzer instances.
//
// A use-case file holds one INI section per analyzer. The section's
// model_type option selects a registered constructor; options the type's
// schema recognizes are bound into a typed configuration, every other option
// is kept verbatim as extra model settings.
package analyzer

import (
	"maps"

	"github.com/lc/outliers/internal/ini"
)

// ModelTypeKey is the option that selects the analyzer implementation.
const ModelTypeKey = "model_type"

// Analyzer is a configured analyzer. Evaluation logic lives with the
// concrete types' consumers.
type Analyzer interface {
	// Name is the use-case section name.
	Name() string
	// ModelType is the tag the analyzer was built from.
	ModelType() string
	// ExtraModelSettings holds the options the type's schema does not know.
	ExtraModelSettings() map[string]string
}

// Descriptor is one analyzer-defining section of a use-case file.
type Descriptor struct {
	// Name is the section name.
	Name string
	// ModelType is the value of model_type.
	ModelType string
	// Options lists every option of the section in declaration order,
	// DEFAULT fallbacks last.
	Options []ini.Option
	// Extra holds options the schema of ModelType does not recognize.
	Extra map[string]string
}

// Base implements the Analyzer identity methods. Concrete analyzers embed it.
type Base struct {
	name      string
	modelType string
	extra     map[string]string
}

// NewBase returns the identity of the analyzer described by d.
func NewBase(d Descriptor) Base {
	extra := maps.Clone(d.Extra)
	if extra == nil {
		extra = map[string]string{}
	}
	return Base{name: d.Name, modelType: d.ModelType, extra: extra}
}

func (b Base) Name() string                          { return b.name }
func (b Base) ModelType() string                     { return b.modelType }
func (b Base) ExtraModelSettings() map[string]string { return b.extra }

// Extra returns the extra model setting key.
func (b Base) Extra(key string) (string, bool) {
	v, ok := b.extra[key]
	return v, ok
}
