package analyzer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownModelType is wrapped by *UnknownModelTypeError.
	ErrUnknownModelType = errors.New("unknown model type")
	// ErrMissingRequiredOption is returned when a recognized option the
	// analyzer type requires is absent or empty.
	ErrMissingRequiredOption = errors.New("missing required option")
	// ErrInvalidOption is returned when a recognized option has a value the
	// analyzer type cannot accept.
	ErrInvalidOption = errors.New("invalid option")
	// ErrNoAnalyzerSection is returned by Create when the file defines no analyzer.
	ErrNoAnalyzerSection = errors.New("no analyzer section")
	// ErrMultipleAnalyzerSections is returned by Create when the file defines
	// more than one analyzer.
	ErrMultipleAnalyzerSections = errors.New("more than one analyzer section")
	// ErrNoUseCases is returned by Discover when a pattern matches nothing.
	ErrNoUseCases = errors.New("no use-case file found")
)

// UnknownModelTypeError reports a model_type with no registered constructor.
type UnknownModelTypeError struct {
	Section   string
	ModelType string
	Known     []string
}

func (e *UnknownModelTypeError) Error() string {
	return fmt.Sprintf("section %q: %v %q (known: %s)",
		e.Section, ErrUnknownModelType, e.ModelType, strings.Join(e.Known, ", "))
}

func (e *UnknownModelTypeError) Unwrap() error { return ErrUnknownModelType }

// SectionError reports why one use-case section could not become an analyzer.
type SectionError struct {
	Path    string
	Section string
	Err     error
}

func (e *SectionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("section %q: %v", e.Section, e.Err)
	}
	return fmt.Sprintf("%s: section %q: %v", e.Path, e.Section, e.Err)
}

func (e *SectionError) Unwrap() error { return e.Err }

// OptionError names the option at fault together with the cause, one of
// ErrMissingRequiredOption or ErrInvalidOption.
type OptionError struct {
	Option string
	Reason string
	Err    error
}

func (e *OptionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v %q", e.Err, e.Option)
	}
	return fmt.Sprintf("%v %q: %s", e.Err, e.Option, e.Reason)
}

func (e *OptionError) Unwrap() error { return e.Err }
