package lexer

// Kind identifies what a token recognizer looks for. Field tokens are the
// exception: because a field name is only a token at all if it appears in
// the caller's schema, field matching takes a schema.FieldSet argument
// directly (see MatchField) rather than being enumerated here.
type Kind int

const (
	KindEOF Kind = iota
	KindTerm
	KindQuote
	KindQuotedTerm
	KindInteger
	KindFloat
	KindBoolean
	KindIPCIDR
	KindRangeLt
	KindRangeLte
	KindRangeGt
	KindRangeGte
	KindRangeEq
	KindAnd
	KindOr
	KindNot
	KindLParen
	KindRParen
	KindBoost
	KindFuzz
	KindNewline
	KindDate4Digit
	KindDate2Digit
	KindDateHyphen
	KindDateColon
	KindDateTimeSep
	KindDateZulu
	KindDateOffsetDirection
	KindRelativeMultiplier
	KindRelativeDirection
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "EOF"
	case KindTerm:
		return "Term"
	case KindQuote:
		return "Quote"
	case KindQuotedTerm:
		return "QuotedTerm"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBoolean:
		return "Boolean"
	case KindIPCIDR:
		return "IpCidr"
	case KindRangeLt:
		return "RangeLt"
	case KindRangeLte:
		return "RangeLte"
	case KindRangeGt:
		return "RangeGt"
	case KindRangeGte:
		return "RangeGte"
	case KindRangeEq:
		return "RangeEq"
	case KindAnd:
		return "And"
	case KindOr:
		return "Or"
	case KindNot:
		return "Not"
	case KindLParen:
		return "Lparen"
	case KindRParen:
		return "Rparen"
	case KindBoost:
		return "Boost"
	case KindFuzz:
		return "Fuzz"
	case KindNewline:
		return "Newline"
	case KindDate4Digit:
		return "AbsoluteDate4Digit"
	case KindDate2Digit:
		return "AbsoluteDate2Digit"
	case KindDateHyphen:
		return "AbsoluteDateHyphen"
	case KindDateColon:
		return "AbsoluteDateColon"
	case KindDateTimeSep:
		return "AbsoluteDateTimeSep"
	case KindDateZulu:
		return "AbsoluteDateZulu"
	case KindDateOffsetDirection:
		return "AbsoluteDateOffsetDirection"
	case KindRelativeMultiplier:
		return "RelativeDateMultiplier"
	case KindRelativeDirection:
		return "RelativeDateDirection"
	default:
		return "Unknown"
	}
}

// Match is the payload returned for one recognized token: the raw lexeme
// plus whichever typed field applies to Kind (Int/Float/Bool/Sign).
type Match struct {
	Kind   Kind
	Lexeme string

	Int   int64   // populated for KindInteger
	Float float64 // populated for KindFloat
	Bool  bool    // populated for KindBoolean
	Sign  int     // populated for KindDateOffsetDirection: +1 or -1
}
