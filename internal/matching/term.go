package matching

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// PatternTimeout bounds a single pattern evaluation. A timed out evaluation
// counts as no match.
var PatternTimeout = 100 * time.Millisecond

// TermKind distinguishes literal terms from patterns.
type TermKind uint8

const (
	TermLiteral TermKind = iota
	TermPattern
)

func (k TermKind) String() string {
	if k == TermPattern {
		return "pattern"
	}
	return "literal"
}

// Term is a single search term, parsed once. A Literal matches by normalized
// substring containment; a Pattern is an ECMAScript regular expression tested
// against the raw value.
type Term struct {
	kind   TermKind
	raw    string
	text   string
	norm   string
	source string
	flags  string
	re     *regexp2.Regexp
}

// Literal builds a literal term.
func Literal(text string) Term {
	return Term{kind: TermLiteral, raw: text, text: text, norm: Normalize(text)}
}

// ParseTerm parses raw. Text of the form /source/flags becomes a pattern; if
// the pattern does not compile the term degrades to a literal of source.
func ParseTerm(raw string) Term {
	source, flags, ok := splitPattern(raw)
	if !ok {
		return Literal(raw)
	}

	re, err := compilePattern(source, flags)
	if err != nil {
		t := Literal(source)
		t.raw = raw
		return t
	}
	return Term{kind: TermPattern, raw: raw, source: source, flags: flags, re: re}
}

func splitPattern(raw string) (source, flags string, ok bool) {
	if !strings.HasPrefix(raw, "/") {
		return "", "", false
	}
	last := strings.LastIndex(raw, "/")
	if last <= 0 {
		return "", "", false
	}
	return raw[1:last], raw[last+1:], true
}

func compilePattern(source, flags string) (*regexp2.Regexp, error) {
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			// ECMAScript mode ignores Singleline
			source = dotAll(source)
		case 'g', 'y', 'u', 'd':
		default:
			return nil, fmt.Errorf("invalid regular expression flag %q", f)
		}
	}

	re, err := regexp2.Compile(source, opts)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = PatternTimeout
	return re, nil
}

// dotAll rewrites every unescaped "." outside a character class to [\s\S].
func dotAll(source string) string {
	var b strings.Builder
	escaped, inClass := false, false
	for _, r := range source {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case inClass:
			inClass = r != ']'
		case r == '[':
			inClass = true
		case r == '.':
			b.WriteString(`[\s\S]`)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (t Term) Kind() TermKind  { return t.kind }
func (t Term) IsPattern() bool { return t.kind == TermPattern }
func (t Term) Raw() string     { return t.raw }
func (t Term) Source() string  { return t.source }
func (t Term) Flags() string   { return t.flags }
func (t Term) Text() string    { return t.text }
func (t Term) String() string  { return t.raw }

// MatchValue tests a single raw field value. An empty value never matches.
func (t Term) MatchValue(raw string) bool {
	if raw == "" {
		return false
	}
	if t.kind == TermPattern {
		return t.matchPattern(raw)
	}
	return strings.Contains(Normalize(raw), t.norm)
}

// MatchAnyToken reports whether the term matches at least one token.
func (t Term) MatchAnyToken(tokens []string) bool {
	for _, tok := range tokens {
		if t.MatchValue(tok) {
			return true
		}
	}
	return false
}

func (t Term) matchPattern(raw string) bool {
	ok, err := t.re.MatchString(raw)
	return err == nil && ok
}

// MarshalJSON writes the term in its original textual form.
func (t Term) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.raw)
}

// UnmarshalJSON parses a JSON string into a term.
func (t *Term) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("match term must be a string: %w", err)
	}
	*t = ParseTerm(s)
	return nil
}

// Terms is a match specification: one term or a list of terms.
type Terms []Term

// ParseTerms parses each raw string.
func ParseTerms(raw ...string) Terms {
	terms := make(Terms, len(raw))
	for i, r := range raw {
		terms[i] = ParseTerm(r)
	}
	return terms
}

// Any reports whether at least one term matches the raw value.
func (ts Terms) Any(raw string) bool {
	for _, t := range ts {
		if t.MatchValue(raw) {
			return true
		}
	}
	return false
}

// AnyToken reports whether at least one term matches at least one token.
func (ts Terms) AnyToken(tokens []string) bool {
	for _, t := range ts {
		if t.MatchAnyToken(tokens) {
			return true
		}
	}
	return false
}

// AllTokens reports whether every term matches at least one token.
func (ts Terms) AllTokens(tokens []string) bool {
	for _, t := range ts {
		if !t.MatchAnyToken(tokens) {
			return false
		}
	}
	return true
}

// Strings returns the raw form of every term.
func (ts Terms) Strings() []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.raw
	}
	return out
}

// MarshalJSON writes a single term as a string and several as an array.
func (ts Terms) MarshalJSON() ([]byte, error) {
	if len(ts) == 1 {
		return json.Marshal(ts[0].raw)
	}
	return json.Marshal(ts.Strings())
}

// UnmarshalJSON accepts a string or an array of strings. Null yields no terms.
func (ts *Terms) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*ts = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var raw []string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("match specification must be a string or an array of strings: %w", err)
		}
		*ts = ParseTerms(raw...)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("match specification must be a string or an array of strings: %w", err)
	}
	*ts = Terms{ParseTerm(s)}
	return nil
}
