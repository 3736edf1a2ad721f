package analyzer

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/lc/outliers/internal/ini"
)

// Defaulter is implemented by schemas that need non-zero defaults before the
// section's options are bound.
type Defaulter interface {
	SetDefaults()
}

// Registry maps a model_type tag to the schema and constructor of an
// analyzer type. Registering a tag again replaces the previous entry, which
// is how tests substitute production types.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registration
}

type registration struct {
	keys  map[string]reflect.Kind
	build func(Descriptor) (Analyzer, error)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

// Register binds modelType to the schema C and the build function.
// C is a struct whose fields carry `yaml:"<option>"` tags naming the options
// it recognizes (embedded structs tagged `yaml:",inline"` contribute their
// fields) and optional `validate` tags checked after binding.
func Register[C any](r *Registry, modelType string, build func(d Descriptor, cfg *C) (Analyzer, error)) {
	t := reflect.TypeOf((*C)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("analyzer: schema for %q must be a struct, got %s", modelType, t))
	}
	keys := make(map[string]reflect.Kind)
	schemaKeys(t, keys)

	reg := &registration{
		keys: keys,
		build: func(d Descriptor) (Analyzer, error) {
			cfg := new(C)
			if dft, ok := any(cfg).(Defaulter); ok {
				dft.SetDefaults()
			}
			if err := bind(d.Options, keys, cfg); err != nil {
				return nil, err
			}
			return build(d, cfg)
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[modelType] = reg
}

// Unregister removes modelType. It reports whether the tag was registered.
func (r *Registry) Unregister(modelType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[modelType]
	delete(r.entries, modelType)
	return ok
}

// Has reports whether modelType is registered.
func (r *Registry) Has(modelType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[modelType]
	return ok
}

// Types returns the registered tags in lexical order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Recognized returns the option names the schema of modelType binds.
func (r *Registry) Recognized(modelType string) ([]string, bool) {
	r.mu.RLock()
	reg, ok := r.entries[modelType]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(reg.keys))
	for k := range reg.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, true
}

// Build resolves the section's model_type and constructs the analyzer.
func (r *Registry) Build(section string, options []ini.Option) (Analyzer, error) {
	d := Descriptor{Name: section, Options: options}
	for _, o := range options {
		if o.Key == ModelTypeKey {
			d.ModelType = o.Value
		}
	}

	r.mu.RLock()
	reg, ok := r.entries[d.ModelType]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownModelTypeError{Section: section, ModelType: d.ModelType, Known: r.Types()}
	}

	d.Extra = make(map[string]string)
	for _, o := range options {
		if o.Key == ModelTypeKey {
			continue
		}
		if _, known := reg.keys[o.Key]; !known {
			d.Extra[o.Key] = o.Value
		}
	}

	a, err := reg.build(d)
	if err != nil {
		return nil, &SectionError{Section: section, Err: err}
	}
	return a, nil
}

func schemaKeys(t reflect.Type, keys map[string]reflect.Kind) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, inline := yamlName(f)
		if name == "-" {
			continue
		}
		if inline {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			schemaKeys(ft, keys)
			continue
		}
		if !f.IsExported() || name == "" {
			continue
		}
		k := f.Type.Kind()
		if k == reflect.Pointer {
			k = f.Type.Elem().Kind()
		}
		keys[name] = k
	}
}

func yamlName(f reflect.StructField) (name string, inline bool) {
	tag, ok := f.Tag.Lookup("yaml")
	if !ok {
		return "", f.Anonymous
	}
	parts := strings.Split(tag, ",")
	for _, p := range parts[1:] {
		if p == "inline" {
			return "", true
		}
	}
	return parts[0], false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _ := yamlName(f)
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// bind decodes the recognized options into cfg and validates it.
// Values are fed to the YAML decoder as plain scalars: string fields are
// forced to !!str, boolean fields accept the configparser spellings and
// numeric fields rely on implicit YAML typing.
func bind(options []ini.Option, keys map[string]reflect.Kind, cfg any) error {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, o := range options {
		kind, ok := keys[o.Key]
		if !ok {
			continue
		}
		value := &yaml.Node{Kind: yaml.ScalarNode, Value: o.Value}
		switch kind {
		case reflect.String:
			value.Tag = "!!str"
		case reflect.Bool:
			b, err := ini.ParseBool(o.Value)
			if err != nil {
				return &OptionError{Option: o.Key, Reason: err.Error(), Err: ErrInvalidOption}
			}
			value.Tag = "!!bool"
			value.Value = fmt.Sprint(b)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: o.Key},
			value,
		)
	}

	if err := node.Decode(cfg); err != nil {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			return fmt.Errorf("%w: %s", ErrInvalidOption, strings.Join(te.Errors, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" {
				return &OptionError{Option: fe.Field(), Err: ErrMissingRequiredOption}
			}
			return &OptionError{
				Option: fe.Field(),
				Reason: fmt.Sprintf("failed %q constraint (value %v)", fe.ActualTag(), fe.Value()),
				Err:    ErrInvalidOption,
			}
		}
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	return nil
}
