package ini

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Options controls how a document is parsed.
type Options struct {
	// Strict rejects a section declared twice, or an option declared twice
	// inside one section, within the same source. Parsing stops at the
	// first conflict. When false, repeated headers reopen the section and
	// the last value of a repeated option wins.
	Strict bool
}

// ParseError reports a line that is neither a header, an option, a comment
// nor a continuation.
type ParseError struct {
	Source string
	Line   int
	Text   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: cannot parse line %q", e.Source, e.Line, e.Text)
}

// MissingSectionHeaderError reports an option found before any header.
type MissingSectionHeaderError struct {
	Source string
	Line   int
	Text   string
}

func (e *MissingSectionHeaderError) Error() string {
	return fmt.Sprintf("%s:%d: option %q appears before any section header", e.Source, e.Line, e.Text)
}

// DuplicateSectionError reports a section declared twice in one source.
type DuplicateSectionError struct {
	Section string
	Source  string
	Line    int
}

func (e *DuplicateSectionError) Error() string {
	return fmt.Sprintf("%s:%d: section %q already exists", e.Source, e.Line, e.Section)
}

// DuplicateOptionError reports an option declared twice inside one section
// of one source.
type DuplicateOptionError struct {
	Section string
	Option  string
	Source  string
	Line    int
}

func (e *DuplicateOptionError) Error() string {
	return fmt.Sprintf("%s:%d: option %q in section %q already exists", e.Source, e.Line, e.Option, e.Section)
}

// ParseBytes parses data. source names the input in error messages.
func ParseBytes(data []byte, source string, opts Options) (*File, error) {
	return Parse(bytes.NewReader(data), source, opts)
}

// Parse reads a document from r. source names the input in error messages.
func Parse(r io.Reader, source string, opts Options) (*File, error) {
	p := &parser{
		file:   New(),
		source: source,
		opts:   opts,
		seen:   make(map[string]map[string]struct{}),
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		p.lineNo++
		if err := p.line(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}
	return p.file, nil
}

type parser struct {
	file   *File
	source string
	opts   Options
	lineNo int

	cur       *Section
	curKey    string
	curIndent int
	// blank lines seen since the last line of curKey
	blanks int

	// section -> options declared in this source, for strict mode
	seen map[string]map[string]struct{}
}

func (p *parser) line(raw string) error {
	if p.lineNo == 1 {
		raw = strings.TrimPrefix(raw, "\ufeff")
	}
	trimmed := strings.TrimSpace(raw)
	indent := len(raw) - len(strings.TrimLeft(raw, " \t"))

	if trimmed == "" {
		if p.curKey != "" {
			p.blanks++
		}
		return nil
	}
	if trimmed[0] == '#' || trimmed[0] == ';' {
		return nil
	}

	if p.curKey != "" && indent > p.curIndent {
		v, _ := p.cur.Value(p.curKey)
		if v == "" {
			p.cur.set(p.curKey, trimmed)
		} else {
			p.cur.set(p.curKey, v+strings.Repeat("\n", p.blanks+1)+trimmed)
		}
		p.blanks = 0
		return nil
	}
	p.blanks = 0

	if trimmed[0] == '[' {
		end := strings.IndexByte(trimmed, ']')
		if end < 0 {
			return &ParseError{Source: p.source, Line: p.lineNo, Text: raw}
		}
		name := strings.TrimSpace(trimmed[1:end])
		if name == "" {
			return &ParseError{Source: p.source, Line: p.lineNo, Text: raw}
		}
		return p.header(name)
	}

	i := strings.IndexAny(trimmed, "=:")
	if i <= 0 {
		return &ParseError{Source: p.source, Line: p.lineNo, Text: raw}
	}
	if p.cur == nil {
		return &MissingSectionHeaderError{Source: p.source, Line: p.lineNo, Text: raw}
	}
	key := strings.TrimSpace(trimmed[:i])
	value := strings.TrimSpace(trimmed[i+1:])

	if p.opts.Strict {
		opts := p.seen[p.cur.Name()]
		if _, dup := opts[key]; dup {
			return &DuplicateOptionError{Section: p.cur.Name(), Option: key, Source: p.source, Line: p.lineNo}
		}
		opts[key] = struct{}{}
	}

	p.cur.set(key, value)
	p.curKey = key
	p.curIndent = indent
	return nil
}

// header opens name. DEFAULT may be reopened even in strict mode; its
// options are still checked for duplicates.
func (p *parser) header(name string) error {
	if _, dup := p.seen[name]; dup {
		if p.opts.Strict && name != DefaultSection {
			return &DuplicateSectionError{Section: name, Source: p.source, Line: p.lineNo}
		}
	} else {
		p.seen[name] = make(map[string]struct{})
	}
	p.cur = p.file.section(name)
	p.curKey = ""
	return nil
}
