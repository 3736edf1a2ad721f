package whitelist

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type WhitelistTestSuite struct {
	suite.Suite
}

func (s *WhitelistTestSuite) TestCompileLiterals() {
	testCases := []struct {
		name   string
		raw    []string
		expect [][]string
	}{
		{
			name:   "no values",
			raw:    nil,
			expect: [][]string{},
		},
		{
			name:   "trims and splits",
			raw:    []string{"  alice ,bob", "single"},
			expect: [][]string{{"alice", "bob"}, {"single"}},
		},
		{
			name:   "duplicates collapse",
			raw:    []string{"a, a, b"},
			expect: [][]string{{"a", "b"}},
		},
		{
			name:   "empty tokens dropped",
			raw:    []string{"a,,  ,b,", " , "},
			expect: [][]string{{"a", "b"}},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			sets := CompileLiterals(tc.raw)
			s.NotNil(sets)
			got := make([][]string, 0, len(sets))
			for _, set := range sets {
				got = append(got, set.Members())
			}
			s.Equal(tc.expect, got)
		})
	}
}

func (s *WhitelistTestSuite) TestCompileRegexIsolatesFailures() {
	groups, failing := CompileRegex([]string{"^.*apples$,(unbalanced"})

	s.Require().Len(groups, 1)
	s.Equal([]string{"^.*apples$"}, groups[0].Patterns())
	s.Equal([]string{"(unbalanced"}, failing)
}

func (s *WhitelistTestSuite) TestCompileRegexDropsEmptyGroups() {
	groups, failing := CompileRegex([]string{
		"(bad",
		"^ok$",
		" , ",
		"[also bad, (bad",
	})

	s.Require().Len(groups, 1)
	s.Equal([]string{"^ok$"}, groups[0].Patterns())
	s.Equal([]string{" (bad", "(bad", "[also bad"}, failing)
}

func (s *WhitelistTestSuite) TestCompileRegexKeepsFailingTokensVerbatim() {
	groups, failing := CompileRegex([]string{"^ok$ ,  (open ,\tclass[ "})

	s.Require().Len(groups, 1)
	s.Equal([]string{"^ok$"}, groups[0].Patterns())
	s.Equal([]string{"\tclass[ ", "  (open "}, failing)
}

func (s *WhitelistTestSuite) TestCompileRegexPythonNamedGroups() {
	testCases := []struct {
		name    string
		pattern string
		match   []string
		miss    []string
	}{
		{
			name:    "named group",
			pattern: "(?P<user>adm)in",
			match:   []string{"admin", "ADMIN"},
			miss:    []string{"adm"},
		},
		{
			name:    "named backreference",
			pattern: "^(?P<a>x+)-(?P=a)$",
			match:   []string{"xx-xx", "x-x"},
			miss:    []string{"xx-x"},
		},
		{
			name:    "escaped parenthesis is literal",
			pattern: `^\(?P<a>$`,
			match:   []string{"P<a>", "(P<a>"},
			miss:    []string{"a"},
		},
		{
			name:    "inside a character class",
			pattern: "^[(?P<]+$",
			match:   []string{"(?P<"},
			miss:    []string{"x"},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			w := New(nil, []string{tc.pattern})
			s.Empty(w.FailingPatterns())
			s.Require().Len(w.Regexps(), 1)
			s.Equal([]string{tc.pattern}, w.Regexps()[0].Patterns())
			for _, v := range tc.match {
				s.True(w.Match([]string{v}), v)
			}
			for _, v := range tc.miss {
				s.False(w.Match([]string{v}), v)
			}
		})
	}
}

func (s *WhitelistTestSuite) TestCompileRegexEmpty() {
	groups, failing := CompileRegex(nil)
	s.NotNil(groups)
	s.Empty(groups)
	s.NotNil(failing)
	s.Empty(failing)
}

func (s *WhitelistTestSuite) TestRegexIsCaseInsensitive() {
	w := New(nil, []string{"^.*APPLES$"})
	s.True(w.Match([]string{"green apples"}))
	s.False(w.Match([]string{"pears"}))
}

func (s *WhitelistTestSuite) TestRegexSupportsLookaround() {
	w := New(nil, []string{`^(?!internal-).*\.example\.com$`})
	s.Empty(w.FailingPatterns())
	s.True(w.Match([]string{"www.example.com"}))
	s.False(w.Match([]string{"internal-db.example.com"}))
}

func (s *WhitelistTestSuite) TestMatch() {
	w := New(
		[]string{"alice, workstation-1", "svc_backup"},
		[]string{"^10\\.0\\.", "(broken"},
	)
	s.Equal([]string{"(broken"}, w.FailingPatterns())

	testCases := []struct {
		name   string
		values []string
		expect bool
	}{
		{name: "all members of a literal set", values: []string{"workstation-1", "x", "alice"}, expect: true},
		{name: "part of a literal set", values: []string{"alice"}, expect: false},
		{name: "single member set", values: []string{"svc_backup"}, expect: true},
		{name: "literal match is exact", values: []string{"svc_backup2"}, expect: false},
		{name: "regex on any value", values: []string{"bob", "10.0.3.4"}, expect: true},
		{name: "nothing", values: []string{"bob", "192.168.0.1"}, expect: false},
		{name: "no values", values: nil, expect: false},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.expect, w.Match(tc.values))
		})
	}
}

func (s *WhitelistTestSuite) TestNilWhitelistMatchesNothing() {
	var w *Whitelist
	s.False(w.Match([]string{"anything"}))
}

func (s *WhitelistTestSuite) TestMatchDocument() {
	w := New([]string{"alice, ws-1"}, nil)
	doc := map[string]any{
		"user": map[string]any{"name": "alice"},
		"host": map[string]any{
			"names": []any{"ws-0", "ws-1"},
		},
		"port": 22,
	}
	s.True(w.MatchDocument(doc))
	s.False(w.MatchDocument(map[string]any{"user": "alice"}))
}

func (s *WhitelistTestSuite) TestFlatten() {
	doc := map[string]any{
		"b": []any{"x", 1, true, nil},
		"a": map[string]any{"z": "deep", "y": []string{"s1", "s2"}},
		"c": 1.5,
	}
	s.Equal([]string{"s1", "s2", "deep", "x", "1", "true", "1.5"}, Flatten(doc))
}

func (s *WhitelistTestSuite) TestFlattenDecodedJSONNumbers() {
	var doc map[string]any
	s.Require().NoError(json.Unmarshal([]byte(`{"pid":1000000,"ok":true,"port":8080,"ratio":0.25}`), &doc))
	s.Equal([]string{"true", "1000000", "8080", "0.25"}, Flatten(doc))
	s.True(New([]string{"1000000"}, nil).MatchDocument(doc))

	dec := json.NewDecoder(strings.NewReader(`{"big":12345678901234567890}`))
	dec.UseNumber()
	var precise map[string]any
	s.Require().NoError(dec.Decode(&precise))
	s.Equal([]string{"12345678901234567890"}, Flatten(precise))
}

func TestWhitelistTestSuite(t *testing.T) {
	suite.Run(t, new(WhitelistTestSuite))
}
