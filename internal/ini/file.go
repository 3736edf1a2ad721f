// Package ini implements the INI dialect used by outliers configuration and
// use-case files: `[section]` headers, `key = value` (or `key: value`) options,
// `#`/`;` comments, indented continuation lines and a `[DEFAULT]` fallback
// section. Keys and section names are case-sensitive and values are never
// interpolated.
package ini

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultSection is the name of the section whose options act as fallbacks
// for every other section.
const DefaultSection = "DEFAULT"

var (
	// ErrNoSection is returned when a requested section does not exist.
	ErrNoSection = errors.New("no such section")
	// ErrNoOption is returned when a requested option does not exist.
	ErrNoOption = errors.New("no such option")
	// ErrNotBoolean is returned when a value cannot be read as a boolean.
	ErrNotBoolean = errors.New("not a boolean")
)

// LookupError describes a failed lookup of a section or option.
type LookupError struct {
	Section string
	Option  string
	Err     error
}

func (e *LookupError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("section %q: %v", e.Section, e.Err)
	}
	return fmt.Sprintf("option %q in section %q: %v", e.Option, e.Section, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Option is a single key/value pair.
type Option struct {
	Key   string
	Value string
}

// Section is an ordered set of options.
type Section struct {
	name  string
	keys  []string
	value map[string]string
}

func newSection(name string) *Section {
	return &Section{name: name, value: make(map[string]string)}
}

// Name returns the section name.
func (s *Section) Name() string { return s.name }

// Has reports whether the section itself declares key (DEFAULT fallbacks are
// not considered).
func (s *Section) Has(key string) bool {
	_, ok := s.value[key]
	return ok
}

// Value returns the value of key as declared in this section.
func (s *Section) Value(key string) (string, bool) {
	v, ok := s.value[key]
	return v, ok
}

// Keys returns the declared keys in declaration order.
func (s *Section) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Options returns the declared options in declaration order.
func (s *Section) Options() []Option {
	out := make([]Option, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, Option{Key: k, Value: s.value[k]})
	}
	return out
}

// set stores key, keeping the position of the first declaration.
func (s *Section) set(key, value string) {
	if _, ok := s.value[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.value[key] = value
}

func (s *Section) clone() *Section {
	c := newSection(s.name)
	for _, k := range s.keys {
		c.set(k, s.value[k])
	}
	return c
}

// File is a parsed INI document, or the overlay of several of them.
// The zero value is not usable; use New.
type File struct {
	defaults *Section
	order    []string
	sections map[string]*Section
}

// New returns an empty document.
func New() *File {
	return &File{
		defaults: newSection(DefaultSection),
		sections: make(map[string]*Section),
	}
}

// section returns the named section, creating it if needed.
func (f *File) section(name string) *Section {
	if name == DefaultSection {
		return f.defaults
	}
	if s, ok := f.sections[name]; ok {
		return s
	}
	s := newSection(name)
	f.sections[name] = s
	f.order = append(f.order, name)
	return s
}

// Sections returns the section names in declaration order, DEFAULT excluded.
func (f *File) Sections() []string {
	return append([]string(nil), f.order...)
}

// HasSection reports whether the named section exists.
func (f *File) HasSection(name string) bool {
	_, ok := f.sections[name]
	return ok
}

// Section returns the named section.
func (f *File) Section(name string) (*Section, bool) {
	if name == DefaultSection {
		return f.defaults, true
	}
	s, ok := f.sections[name]
	return s, ok
}

// Defaults returns the DEFAULT section.
func (f *File) Defaults() *Section { return f.defaults }

// Get returns the value of option in section, falling back to DEFAULT.
func (f *File) Get(section, option string) (string, error) {
	s, ok := f.sections[section]
	if !ok {
		return "", &LookupError{Section: section, Err: ErrNoSection}
	}
	if v, ok := s.value[option]; ok {
		return v, nil
	}
	if v, ok := f.defaults.value[option]; ok {
		return v, nil
	}
	return "", &LookupError{Section: section, Option: option, Err: ErrNoOption}
}

// GetBool reads option as a boolean. Accepted values, case-insensitively, are
// 1/yes/true/on and 0/no/false/off.
func (f *File) GetBool(section, option string) (bool, error) {
	v, err := f.Get(section, option)
	if err != nil {
		return false, err
	}
	b, err := ParseBool(v)
	if err != nil {
		return false, &LookupError{Section: section, Option: option, Err: err}
	}
	return b, nil
}

// Items returns the options of section in declaration order, followed by
// DEFAULT options the section does not override.
func (f *File) Items(section string) ([]Option, error) {
	s, ok := f.sections[section]
	if !ok {
		return nil, &LookupError{Section: section, Err: ErrNoSection}
	}
	items := s.Options()
	for _, k := range f.defaults.keys {
		if !s.Has(k) {
			items = append(items, Option{Key: k, Value: f.defaults.value[k]})
		}
	}
	return items, nil
}

// Values returns only the values of Items(section). A missing section yields
// an empty slice.
func (f *File) Values(section string) []string {
	items, err := f.Items(section)
	if err != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Value)
	}
	return out
}

// Overlay merges other into f. For every (section, option) present in other
// the value of other wins; sections new to f are appended in other's order.
func (f *File) Overlay(other *File) {
	for _, k := range other.defaults.keys {
		f.defaults.set(k, other.defaults.value[k])
	}
	for _, name := range other.order {
		dst := f.section(name)
		src := other.sections[name]
		for _, k := range src.keys {
			dst.set(k, src.value[k])
		}
	}
}

// Clone returns a deep copy of f.
func (f *File) Clone() *File {
	c := New()
	c.defaults = f.defaults.clone()
	for _, name := range f.order {
		c.order = append(c.order, name)
		c.sections[name] = f.sections[name].clone()
	}
	return c
}

// ParseBool parses s with configparser semantics.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "yes", "true", "on":
		return true, nil
	case "0", "no", "false", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrNotBoolean, s)
}
