// Package whitelist compiles the whitelist_literals and whitelist_regexps
// configuration sections into matchers and evaluates documents against them.
package whitelist

import (
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// MatchTimeout bounds a single pattern evaluation.
var MatchTimeout = time.Second

// LiteralSet holds the trimmed members of one whitelist_literals value. A
// document matches the set only when every member is present.
type LiteralSet map[string]struct{}

// Members returns the members in lexical order.
func (s LiteralSet) Members() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// matchAll reports whether every member of s is in values.
func (s LiteralSet) matchAll(values map[string]struct{}) bool {
	if len(s) == 0 {
		return false
	}
	for m := range s {
		if _, ok := values[m]; !ok {
			return false
		}
	}
	return true
}

// RegexGroup holds the compiled patterns of one whitelist_regexps value.
// A document matches the group when any pattern matches any of its values.
type RegexGroup struct {
	patterns []*regexp2.Regexp
	sources  []string
}

// Patterns returns every compiled pattern as written in the configuration.
func (g RegexGroup) Patterns() []string {
	return append([]string(nil), g.sources...)
}

// Len returns the number of compiled patterns.
func (g RegexGroup) Len() int { return len(g.patterns) }

func (g RegexGroup) matchAny(values []string) bool {
	for _, re := range g.patterns {
		for _, v := range values {
			// a timeout counts as no match
			if ok, err := re.MatchString(v); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// splitValue splits a raw comma separated value into trimmed, non-empty tokens.
func splitValue(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// CompileLiterals turns each raw value into a LiteralSet, preserving the
// order of values. Values without any token produce no set.
func CompileLiterals(raw []string) []LiteralSet {
	sets := make([]LiteralSet, 0, len(raw))
	for _, value := range raw {
		tokens := splitValue(value)
		if len(tokens) == 0 {
			continue
		}
		set := make(LiteralSet, len(tokens))
		for _, t := range tokens {
			set[t] = struct{}{}
		}
		sets = append(sets, set)
	}
	return sets
}

// CompileRegex turns each raw value into a RegexGroup of case-insensitive
// patterns. Tokens are trimmed before compiling. A token that does not
// compile is left out of its group and reported in failing exactly as it
// appears in the value; its siblings are kept. A value whose tokens all
// fail contributes no group at all. failing is sorted and free of
// duplicates.
func CompileRegex(raw []string) (groups []RegexGroup, failing []string) {
	groups = make([]RegexGroup, 0, len(raw))
	failed := make(map[string]struct{})

	for _, value := range raw {
		var group RegexGroup
		seen := make(map[string]struct{})
		for _, part := range strings.Split(value, ",") {
			token := strings.TrimSpace(part)
			if token == "" {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}

			re, err := regexp2.Compile(translatePython(token), regexp2.IgnoreCase)
			if err != nil {
				failed[part] = struct{}{}
				continue
			}
			re.MatchTimeout = MatchTimeout
			group.patterns = append(group.patterns, re)
			group.sources = append(group.sources, token)
		}
		if group.Len() > 0 {
			groups = append(groups, group)
		}
	}

	failing = make([]string, 0, len(failed))
	for f := range failed {
		failing = append(failing, f)
	}
	sort.Strings(failing)
	return groups, failing
}

// Whitelist bundles the compiled literal sets and regex groups.
type Whitelist struct {
	literals []LiteralSet
	regexps  []RegexGroup
	failing  []string
}

// New compiles the raw values of both whitelist sections.
func New(literalValues, regexValues []string) *Whitelist {
	w := &Whitelist{literals: CompileLiterals(literalValues)}
	w.regexps, w.failing = CompileRegex(regexValues)
	return w
}

// Literals returns the literal sets in configuration order.
func (w *Whitelist) Literals() []LiteralSet { return w.literals }

// Regexps returns the non-empty regex groups in configuration order.
func (w *Whitelist) Regexps() []RegexGroup { return w.regexps }

// FailingPatterns returns the patterns that did not compile.
func (w *Whitelist) FailingPatterns() []string { return w.failing }

// Match reports whether values are whitelisted: some literal set has all of
// its members among values, or some regex group has a pattern matching one
// of them.
func (w *Whitelist) Match(values []string) bool {
	if w == nil {
		return false
	}
	if len(w.literals) > 0 {
		index := make(map[string]struct{}, len(values))
		for _, v := range values {
			index[v] = struct{}{}
		}
		for _, set := range w.literals {
			if set.matchAll(index) {
				return true
			}
		}
	}
	for _, g := range w.regexps {
		if g.matchAny(values) {
			return true
		}
	}
	return false
}

// MatchDocument flattens doc and calls Match.
func (w *Whitelist) MatchDocument(doc map[string]any) bool {
	return w.Match(Flatten(doc))
}

// translatePython rewrites the Python-only named group forms (?P<name>...)
// and (?P=name) into their regexp2 equivalents. Escaped characters and
// character classes are copied unchanged.
func translatePython(p string) string {
	if !strings.Contains(p, "(?P") {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	inClass := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '\\' && i+1 < len(p):
			b.WriteByte(c)
			b.WriteByte(p[i+1])
			i++
			continue
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
		case strings.HasPrefix(p[i:], "(?P<"):
			b.WriteString("(?<")
			i += len("(?P<") - 1
			continue
		case strings.HasPrefix(p[i:], "(?P="):
			if end := strings.IndexByte(p[i:], ')'); end > 0 {
				b.WriteString(`\k<`)
				b.WriteString(p[i+len("(?P=") : i+end])
				b.WriteByte('>')
				i += end
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
