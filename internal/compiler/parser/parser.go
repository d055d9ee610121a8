// Package parser implements the recursive-descent parser for the sieve
// query language: operator precedence (lines → or → and → boost → not →
// group → typed-field terms), typed-field dispatch, and date-fragment
// assembly, driven entirely through the four lexer primitives in
// internal/compiler/lexer.
package parser

import (
	"strconv"
	"time"

	"github.com/sievelang/sieve/internal/compiler/cerr"
	"github.com/sievelang/sieve/internal/compiler/clock"
	"github.com/sievelang/sieve/internal/compiler/emit"
	"github.com/sievelang/sieve/internal/compiler/lexer"
	"github.com/sievelang/sieve/internal/compiler/schema"
)

// maxDepth bounds recursion through the connective productions so that a
// deeply nested or maliciously repetitive query fails cleanly instead of
// exhausting the goroutine stack.
const maxDepth = 128

// Parser holds the configuration for a single parse: the field schema and
// the clock relative dates are resolved against. A Parser is cheap to
// construct and safe to discard after one Parse call; it holds no token
// stream of its own; every production pulls tokens directly from the
// residual input string it's handed.
type Parser struct {
	lx    *lexer.Lexer
	cfg   *schema.Config
	clock clock.Clock
}

// New creates a Parser for one parse against cfg, resolving relative dates
// against clk.
func New(cfg *schema.Config, clk clock.Clock) *Parser {
	return &Parser{lx: lexer.New(cfg), cfg: cfg, clock: clk}
}

// Parse compiles input into the output JSON tree (an emit.Obj, or a plain
// slice/scalar for the rare node that isn't itself an object), or returns a
// *cerr.InvalidInput describing the first fatal error.
func (p *Parser) Parse(input string) (any, error) {
	clauses, err := p.parseLines(input)
	if err != nil {
		return nil, err
	}
	switch len(clauses) {
	case 0:
		return emit.MatchNone(), nil
	case 1:
		return clauses[0], nil
	default:
		return emit.Should(clauses), nil
	}
}

// parseLines implements `lines = (top NEWLINE*)* EOF`: tops are separated
// by one or more newlines and nothing else. Anything else following a top
// (without an intervening newline) is junk.
func (p *Parser) parseLines(input string) ([]any, error) {
	cur := input
	var clauses []any

	for {
		for {
			next, _, ok := p.lx.MatchToken(cur, lexer.KindNewline)
			if !ok {
				break
			}
			cur = next
		}
		if _, _, ok := p.lx.MatchToken(cur, lexer.KindEOF); ok {
			return clauses, nil
		}

		node, next, err := p.parseTop(cur, 0)
		if err != nil {
			if cerr.IsNoMatch(err) {
				return nil, cerr.Invalid("Junk at end of expression")
			}
			return nil, err
		}
		clauses = append(clauses, node)
		cur = next

		if nl, _, ok := p.lx.MatchToken(cur, lexer.KindNewline); ok {
			cur = nl
			continue
		}
		if _, _, ok := p.lx.MatchToken(cur, lexer.KindEOF); ok {
			return clauses, nil
		}
		return nil, cerr.Invalid("Junk at end of expression")
	}
}

// commitErr converts a NoMatch bubbling out of a mandatory sub-parse (one
// that follows a token the caller has already committed to, like '(' or
// NOT) into a fatal InvalidInput. Any other error — already fatal, or nil —
// passes through unchanged.
func commitErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if cerr.IsNoMatch(err) {
		return cerr.Invalid(msg)
	}
	return err
}

func (p *Parser) parseTop(input string, depth int) (any, string, error) {
	if depth > maxDepth {
		return nil, input, cerr.Invalid("Expression too deeply nested")
	}
	return p.parseOr(input, depth+1)
}

// or = and (OR top)? — right-associative: the right operand is a full top,
// not another `and`, so "A OR B OR C" parses as "A OR (B OR C)".
func (p *Parser) parseOr(input string, depth int) (any, string, error) {
	left, cur, err := p.parseAnd(input, depth)
	if err != nil {
		return nil, input, err
	}
	next, _, ok := p.lx.MatchToken(cur, lexer.KindOr)
	if !ok {
		return left, cur, nil
	}
	right, after, err := p.parseTop(next, depth+1)
	if err != nil {
		return nil, input, commitErr(err, "Expected an expression after OR")
	}
	return emit.Should([]any{left, right}), after, nil
}

// and = boost (AND top)? — same right-associativity as or.
func (p *Parser) parseAnd(input string, depth int) (any, string, error) {
	left, cur, err := p.parseBoost(input, depth)
	if err != nil {
		return nil, input, err
	}
	next, _, ok := p.lx.MatchToken(cur, lexer.KindAnd)
	if !ok {
		return left, cur, nil
	}
	right, after, err := p.parseTop(next, depth+1)
	if err != nil {
		return nil, input, commitErr(err, "Expected an expression after AND")
	}
	return emit.Must([]any{left, right}), after, nil
}

// boost = not (BOOST Float)? — Float per the grammar, but an Integer
// lexeme is accepted and coerced, same as any other Float value slot.
func (p *Parser) parseBoost(input string, depth int) (any, string, error) {
	operand, cur, err := p.parseNot(input, depth)
	if err != nil {
		return nil, input, err
	}
	afterCaret, _, ok := p.lx.MatchToken(cur, lexer.KindBoost)
	if !ok {
		return operand, cur, nil
	}
	after, boost, ok := p.matchFloatValue(afterCaret)
	if !ok {
		return nil, input, cerr.Invalid("Expected a boost value after '^'")
	}
	if boost < 0 {
		return nil, input, cerr.Invalid("Boost must not be negative")
	}
	return emit.FunctionScore(operand, boost), after, nil
}

// not = NOT top | group — note the operand is a full top, so "NOT A AND B"
// parses as "NOT (A AND B)", not "(NOT A) AND B". This is a deliberate
// grammar property, not a bug.
func (p *Parser) parseNot(input string, depth int) (any, string, error) {
	next, _, ok := p.lx.MatchToken(input, lexer.KindNot)
	if !ok {
		return p.parseGroup(input, depth)
	}
	operand, after, err := p.parseTop(next, depth+1)
	if err != nil {
		return nil, input, commitErr(err, "Expected an expression after NOT")
	}
	return emit.MustNot(operand), after, nil
}

// group = LPAREN top RPAREN | typed_term
func (p *Parser) parseGroup(input string, depth int) (any, string, error) {
	next, _, ok := p.lx.MatchToken(input, lexer.KindLParen)
	if !ok {
		return p.parseTypedTerm(input, depth)
	}
	inner, cur, err := p.parseTop(next, depth+1)
	if err != nil {
		return nil, input, commitErr(err, "Expected an expression inside parentheses")
	}
	after, _, ok := p.lx.MatchToken(cur, lexer.KindRParen)
	if !ok {
		return nil, input, cerr.Invalid("Imbalanced parentheses")
	}
	return inner, after, nil
}

// typed_term = bool | ip | int | float | date | term — tried in this fixed
// priority order. Each typed attempt first probes for a field name in its
// own field set; if that fails, it's a silent NoMatch and the next type is
// tried. Once a field name in the right set is found, the attempt commits:
// anything else wrong from there on is a fatal InvalidInput, never a
// silent fall-through to `term`.
func (p *Parser) parseTypedTerm(input string, depth int) (any, string, error) {
	if node, cur, err, matched := p.tryBool(input); matched {
		return node, cur, err
	}
	if node, cur, err, matched := p.tryIP(input); matched {
		return node, cur, err
	}
	if node, cur, err, matched := p.tryInt(input); matched {
		return node, cur, err
	}
	if node, cur, err, matched := p.tryFloat(input); matched {
		return node, cur, err
	}
	if node, cur, err, matched := p.tryDate(input); matched {
		return node, cur, err
	}
	return p.parseTermProduction(input)
}

func (p *Parser) tryBool(input string) (any, string, error, bool) {
	rest, name, ok := p.lx.MatchField(input, p.cfg.BoolFields)
	if !ok {
		return nil, input, nil, false
	}
	afterEq, _, ok := p.lx.MatchToken(rest, lexer.KindRangeEq)
	if !ok {
		return nil, input, cerr.Invalid("Expected ':' after bool field %q", name), true
	}
	after, m, ok := p.lx.MatchToken(afterEq, lexer.KindBoolean)
	if !ok {
		return nil, input, cerr.Invalid("Expected a boolean value for field %q", name), true
	}
	return emit.Term(name, m.Bool), after, nil, true
}

func (p *Parser) tryIP(input string) (any, string, error, bool) {
	rest, name, ok := p.lx.MatchField(input, p.cfg.IPFields)
	if !ok {
		return nil, input, nil, false
	}
	afterEq, _, ok := p.lx.MatchToken(rest, lexer.KindRangeEq)
	if !ok {
		return nil, input, cerr.Invalid("Expected ':' after IP field %q", name), true
	}
	after, m, ok := p.lx.MatchToken(afterEq, lexer.KindIPCIDR)
	if !ok {
		return nil, input, cerr.Invalid("Expected an IP address or CIDR for field %q", name), true
	}
	return emit.Term(name, m.Lexeme), after, nil, true
}

func (p *Parser) tryInt(input string) (any, string, error, bool) {
	rest, name, ok := p.lx.MatchField(input, p.cfg.IntFields)
	if !ok {
		return nil, input, nil, false
	}
	cur, op, ok := p.matchRangeOp(rest)
	if !ok {
		return nil, input, cerr.Invalid("Expected a range operator after int field %q", name), true
	}
	after, m, ok := p.lx.MatchToken(cur, lexer.KindInteger)
	if !ok {
		return nil, input, cerr.Invalid("Expected an integer value for field %q", name), true
	}
	cur = after

	if afterFuzz, _, ok := p.lx.MatchToken(cur, lexer.KindFuzz); ok {
		if op != emit.RangeEq {
			return nil, input, cerr.Invalid("Multiple ranges specified"), true
		}
		after, fm, ok := p.lx.MatchToken(afterFuzz, lexer.KindInteger)
		if !ok {
			return nil, input, cerr.Invalid("Expected an integer fuzz value for field %q", name), true
		}
		return emit.FuzzRange(name, float64(m.Int), float64(fm.Int)), after, nil, true
	}
	return emit.TermRange(name, op, m.Int), cur, nil, true
}

func (p *Parser) tryFloat(input string) (any, string, error, bool) {
	rest, name, ok := p.lx.MatchField(input, p.cfg.FloatFields)
	if !ok {
		return nil, input, nil, false
	}
	cur, op, ok := p.matchRangeOp(rest)
	if !ok {
		return nil, input, cerr.Invalid("Expected a range operator after float field %q", name), true
	}
	after, val, ok := p.matchFloatValue(cur)
	if !ok {
		return nil, input, cerr.Invalid("Expected a numeric value for field %q", name), true
	}
	cur = after

	if afterFuzz, _, ok := p.lx.MatchToken(cur, lexer.KindFuzz); ok {
		if op != emit.RangeEq {
			return nil, input, cerr.Invalid("Multiple ranges specified"), true
		}
		after, fuzz, ok := p.matchFloatValue(afterFuzz)
		if !ok {
			return nil, input, cerr.Invalid("Expected a numeric fuzz value for field %q", name), true
		}
		return emit.FuzzRange(name, val, fuzz), after, nil, true
	}
	return emit.TermRange(name, op, val), cur, nil, true
}

func (p *Parser) tryDate(input string) (any, string, error, bool) {
	rest, name, ok := p.lx.MatchField(input, p.cfg.DateFields)
	if !ok {
		return nil, input, nil, false
	}
	cur, op, ok := p.matchRangeOp(rest)
	if !ok {
		return nil, input, cerr.Invalid("Expected a range operator after date field %q", name), true
	}
	lower, upper, after, err := p.parseDateValue(cur)
	if err != nil {
		return nil, input, commitErr(err, "Expected a date value for field "+name), true
	}
	return emit.DateRange(name, op, emit.FormatInstant(lower), emit.FormatInstant(upper)), after, nil, true
}

// term = QUOTE QuotedTerm QUOTE | Term — both forms match against
// default_field. Returning cerr.NoMatch from here means nothing in
// typed_term applied at all, which parseLines treats as junk.
func (p *Parser) parseTermProduction(input string) (any, string, error) {
	if next, _, ok := p.lx.MatchToken(input, lexer.KindQuote); ok {
		afterContent, m, ok := p.lx.MatchToken(next, lexer.KindQuotedTerm)
		if !ok {
			return nil, input, cerr.Invalid("Unterminated quoted term")
		}
		afterClose, _, ok := p.lx.MatchToken(afterContent, lexer.KindQuote)
		if !ok {
			return nil, input, cerr.Invalid("Unterminated quoted term")
		}
		return emit.Term(p.cfg.DefaultField, m.Lexeme), afterClose, nil
	}
	if next, m, ok := p.lx.MatchToken(input, lexer.KindTerm); ok {
		return emit.Term(p.cfg.DefaultField, m.Lexeme), next, nil
	}
	return nil, input, cerr.NoMatch
}

// matchRangeOp tries the five range-operator kinds, returning the matched
// emit.RangeOp. Order doesn't affect correctness here: the literals
// (".lte:", ".gte:", ".lt:", ".gt:", ":") don't share a common prefix that
// would make one shadow another under simple HasPrefix matching.
func (p *Parser) matchRangeOp(input string) (string, emit.RangeOp, bool) {
	candidates := [...]struct {
		kind lexer.Kind
		op   emit.RangeOp
	}{
		{lexer.KindRangeLte, emit.RangeLte},
		{lexer.KindRangeGte, emit.RangeGte},
		{lexer.KindRangeLt, emit.RangeLt},
		{lexer.KindRangeGt, emit.RangeGt},
		{lexer.KindRangeEq, emit.RangeEq},
	}
	for _, c := range candidates {
		if next, _, ok := p.lx.MatchToken(input, c.kind); ok {
			return next, c.op, true
		}
	}
	return input, 0, false
}

// matchFloatValue accepts a Float token, or an Integer token coerced to
// float64 — "Float | ... or an Integer where a Float is required".
func (p *Parser) matchFloatValue(input string) (string, float64, bool) {
	if next, m, ok := p.lx.MatchToken(input, lexer.KindFloat); ok {
		return next, m.Float, true
	}
	if next, m, ok := p.lx.MatchToken(input, lexer.KindInteger); ok {
		return next, float64(m.Int), true
	}
	return input, 0, false
}

// parseDateValue parses `relative_date | absolute_date` and folds the
// result into a [lower, upper) instant interval.
func (p *Parser) parseDateValue(input string) (time.Time, time.Time, string, error) {
	if next, ms, ok := p.lx.MatchTokens(input, []lexer.Kind{
		lexer.KindInteger, lexer.KindRelativeMultiplier, lexer.KindRelativeDirection,
	}); ok {
		mult, ok := emit.RelativeMultipliers[ms[1].Lexeme]
		if !ok {
			return time.Time{}, time.Time{}, input, cerr.Invalid("Unknown relative date unit %q", ms[1].Lexeme)
		}
		direction := int64(-1)
		if ms[2].Lexeme == "from now" {
			direction = 1
		}
		lower, upper := emit.FoldRelativeDate(p.clock.Now(), ms[0].Int, mult, direction)
		return lower, upper, next, nil
	}
	return p.parseAbsoluteDate(input)
}

// parseAbsoluteDate implements:
//
//	absolute_date = date_frag offset_frag?
//	date_frag     = 4Digit (Hyphen 2Digit (Hyphen 2Digit (TimeSep 2Digit (Colon 2Digit (Colon 2Digit)?)?)?)?)?
//	offset_frag   = Zulu | OffsetDirection 2Digit Colon 2Digit
func (p *Parser) parseAbsoluteDate(input string) (time.Time, time.Time, string, error) {
	cur, yearM, ok := p.lx.MatchToken(input, lexer.KindDate4Digit)
	if !ok {
		return time.Time{}, time.Time{}, input, cerr.NoMatch
	}
	year, _ := strconv.Atoi(yearM.Lexeme)
	month, day, hour, minute, second := 1, 1, 0, 0, 0
	precision := emit.PrecisionYear

	if next, _, ok := p.lx.MatchToken(cur, lexer.KindDateHyphen); ok {
		next, mm, ok := p.lx.MatchToken(next, lexer.KindDate2Digit)
		if !ok {
			return time.Time{}, time.Time{}, input, cerr.Invalid("Expected a two-digit month")
		}
		month, _ = strconv.Atoi(mm.Lexeme)
		precision = emit.PrecisionMonth
		cur = next

		if next, _, ok := p.lx.MatchToken(cur, lexer.KindDateHyphen); ok {
			next, dd, ok := p.lx.MatchToken(next, lexer.KindDate2Digit)
			if !ok {
				return time.Time{}, time.Time{}, input, cerr.Invalid("Expected a two-digit day")
			}
			day, _ = strconv.Atoi(dd.Lexeme)
			precision = emit.PrecisionDay
			cur = next

			if next, _, ok := p.lx.MatchToken(cur, lexer.KindDateTimeSep); ok {
				next, hh, ok := p.lx.MatchToken(next, lexer.KindDate2Digit)
				if !ok {
					return time.Time{}, time.Time{}, input, cerr.Invalid("Expected a two-digit hour")
				}
				hour, _ = strconv.Atoi(hh.Lexeme)
				precision = emit.PrecisionHour
				cur = next

				if next, _, ok := p.lx.MatchToken(cur, lexer.KindDateColon); ok {
					next, mn, ok := p.lx.MatchToken(next, lexer.KindDate2Digit)
					if !ok {
						return time.Time{}, time.Time{}, input, cerr.Invalid("Expected a two-digit minute")
					}
					minute, _ = strconv.Atoi(mn.Lexeme)
					precision = emit.PrecisionMinute
					cur = next

					if next, _, ok := p.lx.MatchToken(cur, lexer.KindDateColon); ok {
						next, ss, ok := p.lx.MatchToken(next, lexer.KindDate2Digit)
						if !ok {
							return time.Time{}, time.Time{}, input, cerr.Invalid("Expected a two-digit second")
						}
						second, _ = strconv.Atoi(ss.Lexeme)
						precision = emit.PrecisionSecond
						cur = next
					}
				}
			}
		}
	}

	loc := time.UTC
	if next, _, ok := p.lx.MatchToken(cur, lexer.KindDateZulu); ok {
		cur = next
	} else if next, signM, ok := p.lx.MatchToken(cur, lexer.KindDateOffsetDirection); ok {
		next, hh, ok := p.lx.MatchToken(next, lexer.KindDate2Digit)
		if !ok {
			return time.Time{}, time.Time{}, input, cerr.Invalid("Expected a two-digit offset hour")
		}
		next, _, ok2 := p.lx.MatchToken(next, lexer.KindDateColon)
		if !ok2 {
			return time.Time{}, time.Time{}, input, cerr.Invalid("Expected ':' in date offset")
		}
		next, mn, ok3 := p.lx.MatchToken(next, lexer.KindDate2Digit)
		if !ok3 {
			return time.Time{}, time.Time{}, input, cerr.Invalid("Expected a two-digit offset minute")
		}
		offHour, _ := strconv.Atoi(hh.Lexeme)
		offMin, _ := strconv.Atoi(mn.Lexeme)
		loc = time.FixedZone("", signM.Sign*(offHour*3600+offMin*60))
		cur = next
	}

	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, input, cerr.Invalid("Invalid month %d", month)
	}
	if day < 1 || day > 31 {
		return time.Time{}, time.Time{}, input, cerr.Invalid("Invalid day %d", day)
	}
	if hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, time.Time{}, input, cerr.Invalid("Invalid time component")
	}

	lower, upper := emit.FoldAbsoluteDate(year, month, day, hour, minute, second, precision, loc)
	return lower, upper, cur, nil
}
