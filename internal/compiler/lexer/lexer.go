// Package lexer provides scannerless lexical analysis for the sieve query
// language. Unlike a conventional position-tracking scanner, a Lexer here
// owns no state across calls: every recognizer is a pure function from a
// remaining input slice (and an expected token kind, or sequence of kinds)
// to either a captured lexeme plus the residual input, or a miss that
// leaves the input untouched. The parser drives the lexer one production
// at a time, trying alternatives by calling into the same four primitives
// the language specifies: MatchToken, MatchTokens, MatchAlternatives, and
// MatchAtMost.
package lexer

import (
	"net"
	"strconv"
	"strings"

	"github.com/sievelang/sieve/internal/compiler/schema"
)

// Lexer recognizes tokens against a configured schema. It carries no
// mutable state: every method is a pure function of its arguments, so a
// single Lexer value may be shared across goroutines and across an
// arbitrary number of parses.
type Lexer struct {
	fields schema.FieldSet
}

// New creates a Lexer that recognizes Field tokens against the union of
// every configured field set.
func New(cfg *schema.Config) *Lexer {
	return &Lexer{fields: cfg.AllFields()}
}

var rangeOperatorLiterals = []string{".lte:", ".gte:", ".lt:", ".gt:", ":"}

// startsRangeOperator reports whether s begins with one of the five range
// operator literals. Longer operators are checked first so ".lte:" isn't
// mistaken for a bare Term boundary at ".lt" followed by stray text.
func startsRangeOperator(s string) bool {
	for _, op := range rangeOperatorLiterals {
		if strings.HasPrefix(s, op) {
			return true
		}
	}
	return false
}

func isHWS(b byte) bool { return b == ' ' || b == '\t' }

func skipHWS(s string) string {
	i := 0
	for i < len(s) && isHWS(s[i]) {
		i++
	}
	return s[i:]
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || isDigit(b)
}

// MatchField looks for the longest literal member of fields at the front of
// input (after skipping leading horizontal whitespace), provided it is
// followed by a non-identifier byte (so "age" doesn't match inside
// "ageless"). It is the parameterized form of the Field token: the payload
// a Field token carries depends on which of the caller's field sets is
// being probed (bool_fields, int_fields, ...), so unlike the other token
// kinds it is not a member of the Kind enum.
func (l *Lexer) MatchField(input string, fields schema.FieldSet) (residual string, name string, ok bool) {
	s := skipHWS(input)
	best := ""
	for f := range fields {
		if len(f) <= len(best) {
			continue
		}
		if !strings.HasPrefix(s, f) {
			continue
		}
		rest := s[len(f):]
		if len(rest) > 0 && isIdentByte(rest[0]) {
			continue
		}
		best = f
	}
	if best == "" {
		return input, "", false
	}
	return s[len(best):], best, true
}

// MatchToken attempts to recognize a single token of the given kind at the
// front of input. On success it returns the residual input and the
// matched token; on failure it returns ok=false and the residual equal to
// the original input, untouched. Leading horizontal whitespace is skipped
// before matching every kind except KindQuotedTerm, whose content is
// whitespace-significant.
func (l *Lexer) MatchToken(input string, kind Kind) (residual string, m Match, ok bool) {
	if kind == KindQuotedTerm {
		return matchQuotedTerm(input)
	}

	s := skipHWS(input)

	switch kind {
	case KindEOF:
		if s == "" {
			return s, Match{Kind: KindEOF}, true
		}
		return input, Match{}, false

	case KindNewline:
		if strings.HasPrefix(s, "\r\n") {
			return s[2:], Match{Kind: KindNewline, Lexeme: "\r\n"}, true
		}
		if strings.HasPrefix(s, "\n") {
			return s[1:], Match{Kind: KindNewline, Lexeme: "\n"}, true
		}
		return input, Match{}, false

	case KindInteger:
		return matchInteger(input, s)

	case KindFloat:
		return matchFloat(input, s)

	case KindBoolean:
		return matchBoolean(input, s)

	case KindIPCIDR:
		return matchIPCIDR(input, s)

	case KindTerm:
		return matchTerm(input, s)

	case KindQuote:
		return matchLiteral(input, s, `"`, KindQuote)

	case KindRangeLte:
		return matchLiteral(input, s, ".lte:", KindRangeLte)
	case KindRangeGte:
		return matchLiteral(input, s, ".gte:", KindRangeGte)
	case KindRangeLt:
		return matchLiteral(input, s, ".lt:", KindRangeLt)
	case KindRangeGt:
		return matchLiteral(input, s, ".gt:", KindRangeGt)
	case KindRangeEq:
		return matchLiteral(input, s, ":", KindRangeEq)

	case KindAnd:
		return matchKeyword(input, s, "AND", KindAnd)
	case KindOr:
		return matchKeyword(input, s, "OR", KindOr)
	case KindNot:
		return matchKeyword(input, s, "NOT", KindNot)

	case KindLParen:
		return matchLiteral(input, s, "(", KindLParen)
	case KindRParen:
		return matchLiteral(input, s, ")", KindRParen)
	case KindBoost:
		return matchLiteral(input, s, "^", KindBoost)
	case KindFuzz:
		return matchLiteral(input, s, "~", KindFuzz)

	case KindDate4Digit:
		return matchDigits(input, s, 4, KindDate4Digit)
	case KindDate2Digit:
		return matchDigits(input, s, 2, KindDate2Digit)

	case KindDateHyphen:
		return matchLiteral(input, s, "-", KindDateHyphen)
	case KindDateColon:
		return matchLiteral(input, s, ":", KindDateColon)
	case KindDateTimeSep:
		if strings.HasPrefix(s, "T") {
			return matchLiteral(input, s, "T", KindDateTimeSep)
		}
		return matchLiteral(input, s, " ", KindDateTimeSep)
	case KindDateZulu:
		return matchLiteral(input, s, "Z", KindDateZulu)
	case KindDateOffsetDirection:
		return matchOffsetDirection(input, s)

	case KindRelativeMultiplier:
		return matchRelativeMultiplier(input, s)
	case KindRelativeDirection:
		return matchRelativeDirection(input, s)

	default:
		return input, Match{}, false
	}
}

// MatchTokens matches a sequence of kinds in order, all-or-nothing: if any
// kind fails to match, the original input is returned untouched and ok is
// false.
func (l *Lexer) MatchTokens(input string, kinds []Kind) (residual string, ms []Match, ok bool) {
	cur := input
	out := make([]Match, 0, len(kinds))
	for _, k := range kinds {
		next, m, matched := l.MatchToken(cur, k)
		if !matched {
			return input, nil, false
		}
		cur = next
		out = append(out, m)
	}
	return cur, out, true
}

// MatchAlternatives tries each sequence in seqs in order and returns the
// first one that fully matches. Sequences after the first match are never
// attempted.
func (l *Lexer) MatchAlternatives(input string, seqs [][]Kind) (residual string, ms []Match, which int, ok bool) {
	for i, seq := range seqs {
		if next, out, matched := l.MatchTokens(input, seq); matched {
			return next, out, i, true
		}
	}
	return input, nil, -1, false
}

// MatchAtMost greedily matches as long a prefix of kinds as it can and
// never fails: it returns however many tokens matched (possibly zero) and
// the residual input after the last successful match.
func (l *Lexer) MatchAtMost(input string, kinds []Kind) (residual string, ms []Match) {
	cur := input
	out := make([]Match, 0, len(kinds))
	for _, k := range kinds {
		next, m, matched := l.MatchToken(cur, k)
		if !matched {
			break
		}
		cur = next
		out = append(out, m)
	}
	return cur, out
}

func matchLiteral(orig, s, lit string, kind Kind) (string, Match, bool) {
	if strings.HasPrefix(s, lit) {
		return s[len(lit):], Match{Kind: kind, Lexeme: lit}, true
	}
	return orig, Match{}, false
}

func matchKeyword(orig, s, word string, kind Kind) (string, Match, bool) {
	if !strings.HasPrefix(s, word) {
		return orig, Match{}, false
	}
	rest := s[len(word):]
	if len(rest) > 0 && isIdentByte(rest[0]) {
		return orig, Match{}, false
	}
	return rest, Match{Kind: kind, Lexeme: word}, true
}

func matchDigits(orig, s string, n int, kind Kind) (string, Match, bool) {
	if len(s) < n {
		return orig, Match{}, false
	}
	for i := 0; i < n; i++ {
		if !isDigit(s[i]) {
			return orig, Match{}, false
		}
	}
	return s[n:], Match{Kind: kind, Lexeme: s[:n]}, true
}

func matchOffsetDirection(orig, s string) (string, Match, bool) {
	if len(s) == 0 {
		return orig, Match{}, false
	}
	switch s[0] {
	case '+':
		return s[1:], Match{Kind: KindDateOffsetDirection, Lexeme: "+", Sign: 1}, true
	case '-':
		return s[1:], Match{Kind: KindDateOffsetDirection, Lexeme: "-", Sign: -1}, true
	default:
		return orig, Match{}, false
	}
}

func matchInteger(orig, s string) (string, Match, bool) {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == start {
		return orig, Match{}, false
	}
	// Not an Integer if it's actually the whole-number prefix of a Float.
	if i < len(s) && s[i] == '.' && i+1 < len(s) && isDigit(s[i+1]) {
		return orig, Match{}, false
	}
	lexeme := s[:i]
	v, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		return orig, Match{}, false
	}
	return s[i:], Match{Kind: KindInteger, Lexeme: lexeme, Int: v}, true
}

func matchFloat(orig, s string) (string, Match, bool) {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	intStart := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == intStart {
		return orig, Match{}, false
	}
	if i >= len(s) || s[i] != '.' {
		return orig, Match{}, false
	}
	i++
	fracStart := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == fracStart {
		return orig, Match{}, false
	}
	lexeme := s[:i]
	v, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		return orig, Match{}, false
	}
	return s[i:], Match{Kind: KindFloat, Lexeme: lexeme, Float: v}, true
}

func matchBoolean(orig, s string) (string, Match, bool) {
	for _, w := range [...]struct {
		text string
		val  bool
	}{{"true", true}, {"false", false}} {
		if len(s) < len(w.text) || !strings.EqualFold(s[:len(w.text)], w.text) {
			continue
		}
		rest := s[len(w.text):]
		if len(rest) > 0 && isIdentByte(rest[0]) {
			continue
		}
		return rest, Match{Kind: KindBoolean, Lexeme: s[:len(w.text)], Bool: w.val}, true
	}
	return orig, Match{}, false
}

func isIPCIDRByte(b byte) bool {
	return b == '.' || b == ':' || b == '/' || isDigit(b) ||
		(b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func matchIPCIDR(orig, s string) (string, Match, bool) {
	i := 0
	for i < len(s) && isIPCIDRByte(s[i]) {
		i++
	}
	if i == 0 {
		return orig, Match{}, false
	}
	candidate := s[:i]
	if strings.Contains(candidate, "/") {
		if _, _, err := net.ParseCIDR(candidate); err != nil {
			return orig, Match{}, false
		}
	} else if net.ParseIP(candidate) == nil {
		return orig, Match{}, false
	}
	return s[i:], Match{Kind: KindIPCIDR, Lexeme: candidate}, true
}

func matchTerm(orig, s string) (string, Match, bool) {
	i := 0
	for i < len(s) {
		b := s[i]
		if isHWS(b) || b == '\n' || b == '\r' || b == '(' || b == ')' || b == '"' {
			break
		}
		if startsRangeOperator(s[i:]) {
			break
		}
		i++
	}
	if i == 0 {
		return orig, Match{}, false
	}
	return s[i:], Match{Kind: KindTerm, Lexeme: s[:i]}, true
}

// matchQuotedTerm scans from input (no leading-whitespace skip: interior
// whitespace of a quoted term is significant) through the next unescaped
// '"', decoding \" into ". It does not consume the closing quote, which the
// caller matches separately with KindQuote.
func matchQuotedTerm(input string) (string, Match, bool) {
	var b strings.Builder
	i := 0
	for i < len(input) {
		c := input[i]
		if c == '"' {
			return input[i:], Match{Kind: KindQuotedTerm, Lexeme: b.String()}, true
		}
		if c == '\\' && i+1 < len(input) && input[i+1] == '"' {
			b.WriteByte('"')
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	return input, Match{}, false
}

var relativeMultiplierWords = [...]string{
	"minutes", "minute",
	"hours", "hour",
	"days", "day",
	"weeks", "week",
	"months", "month",
	"years", "year",
}

func matchRelativeMultiplier(orig, s string) (string, Match, bool) {
	for _, w := range relativeMultiplierWords {
		if !strings.HasPrefix(s, w) {
			continue
		}
		rest := s[len(w):]
		if len(rest) > 0 && isIdentByte(rest[0]) {
			continue
		}
		return rest, Match{Kind: KindRelativeMultiplier, Lexeme: w}, true
	}
	return orig, Match{}, false
}

func matchRelativeDirection(orig, s string) (string, Match, bool) {
	if strings.HasPrefix(s, "from now") {
		rest := s[len("from now"):]
		if len(rest) == 0 || !isIdentByte(rest[0]) {
			return rest, Match{Kind: KindRelativeDirection, Lexeme: "from now"}, true
		}
	}
	if strings.HasPrefix(s, "ago") {
		rest := s[len("ago"):]
		if len(rest) == 0 || !isIdentByte(rest[0]) {
			return rest, Match{Kind: KindRelativeDirection, Lexeme: "ago"}, true
		}
	}
	return orig, Match{}, false
}
