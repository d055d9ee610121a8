// Package schema describes the field-classification table the compiler
// needs to decide how a bare field name should be parsed: as a boolean
// equality, a range over an integer/float/date/IP, a literal exact match,
// an n-gram (partial-match) field, or a caller-supplied custom field.
package schema

import "fmt"

// Kind classifies a configured field for typed-term dispatch.
type Kind int

const (
	Bool Kind = iota
	Date
	Float
	Int
	IP
	Literal
	Ngram
	Custom
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Date:
		return "date"
	case Float:
		return "float"
	case Int:
		return "int"
	case IP:
		return "ip"
	case Literal:
		return "literal"
	case Ngram:
		return "ngram"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// FieldSet is an unordered collection of field names sharing a Kind.
type FieldSet map[string]struct{}

// NewFieldSet builds a FieldSet from a slice of names.
func NewFieldSet(names ...string) FieldSet {
	fs := make(FieldSet, len(names))
	for _, n := range names {
		fs[n] = struct{}{}
	}
	return fs
}

// Has reports whether name is a member of the set.
func (fs FieldSet) Has(name string) bool {
	_, ok := fs[name]
	return ok
}

// Config is the field-classification table: which field names are boolean,
// date, float, int, IP, literal, n-gram, or custom, plus the field a bare
// (unprefixed) term falls back to.
type Config struct {
	BoolFields    FieldSet
	DateFields    FieldSet
	FloatFields   FieldSet
	IntFields     FieldSet
	IPFields      FieldSet
	LiteralFields FieldSet
	NgramFields   FieldSet
	CustomFields  FieldSet

	// DefaultField is the field an untyped bareword term is matched
	// against, e.g. "hello" becomes {"term":{DefaultField:"hello"}}.
	DefaultField string
}

// New builds an empty Config with DefaultField set.
func New(defaultField string) *Config {
	return &Config{
		BoolFields:    FieldSet{},
		DateFields:    FieldSet{},
		FloatFields:   FieldSet{},
		IntFields:     FieldSet{},
		IPFields:      FieldSet{},
		LiteralFields: FieldSet{},
		NgramFields:   FieldSet{},
		CustomFields:  FieldSet{},
		DefaultField:  defaultField,
	}
}

// setsInOrder lists a Config's field sets together with their Kind, in the
// fixed priority order typed-term dispatch tries them: bool, ip, int,
// float, date, then the untyped kinds. Literal/Ngram/Custom fields are not
// part of typed-term dispatch, and the parser has no other production that
// addresses them by field name.
func (c *Config) setsInOrder() []struct {
	kind Kind
	set  FieldSet
} {
	return []struct {
		kind Kind
		set  FieldSet
	}{
		{Bool, c.BoolFields},
		{IP, c.IPFields},
		{Int, c.IntFields},
		{Float, c.FloatFields},
		{Date, c.DateFields},
		{Literal, c.LiteralFields},
		{Ngram, c.NgramFields},
		{Custom, c.CustomFields},
	}
}

// KindOf returns the Kind of a configured field name and true, or (_, false)
// if name is not configured anywhere (in which case it is treated as
// belonging to DefaultField's implicit literal-ish matching, never as an
// error — an unconfigured field name is just ordinary term text to the
// lexer, since the lexer only recognizes Field tokens for configured
// names in the first place).
func (c *Config) KindOf(name string) (Kind, bool) {
	for _, e := range c.setsInOrder() {
		if e.set.Has(name) {
			return e.kind, true
		}
	}
	return 0, false
}

// FieldsOf returns the FieldSet for a given Kind.
func (c *Config) FieldsOf(k Kind) FieldSet {
	for _, e := range c.setsInOrder() {
		if e.kind == k {
			return e.set
		}
	}
	return nil
}

// AllFields returns the union of every configured field name, used by the
// lexer's generic Field-token longest-match.
func (c *Config) AllFields() FieldSet {
	all := FieldSet{}
	for _, e := range c.setsInOrder() {
		for name := range e.set {
			all[name] = struct{}{}
		}
	}
	return all
}

// Validate reports an error if a field name appears in more than one
// FieldSet, or if DefaultField is empty.
func (c *Config) Validate() error {
	if c.DefaultField == "" {
		return fmt.Errorf("schema: default field must not be empty")
	}
	seen := make(map[string]Kind)
	for _, e := range c.setsInOrder() {
		for name := range e.set {
			if prior, ok := seen[name]; ok {
				return fmt.Errorf("schema: field %q configured as both %s and %s", name, prior, e.kind)
			}
			seen[name] = e.kind
		}
	}
	return nil
}
