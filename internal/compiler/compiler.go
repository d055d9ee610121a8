// Package compiler ties the lexer, parser, and emit helpers together into
// the single public entry point the rest of sieve calls: Compile.
package compiler

import (
	"encoding/json"

	"github.com/sievelang/sieve/internal/compiler/cerr"
	"github.com/sievelang/sieve/internal/compiler/clock"
	"github.com/sievelang/sieve/internal/compiler/parser"
	"github.com/sievelang/sieve/internal/compiler/schema"
)

// Compile parses input against cfg, resolving any relative dates against
// clk, and returns the emitted Elasticsearch-shaped query document. On
// failure it returns a *cerr.InvalidInput describing the first fatal
// parse error; there is no partial-parse recovery.
func Compile(input string, cfg schema.Config, clk clock.Clock) (json.RawMessage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := parser.New(&cfg, clk)
	node, err := p.Parse(input)
	if err != nil {
		if ii, ok := cerr.AsInvalidInput(err); ok {
			return nil, ii
		}
		return nil, err
	}
	return json.Marshal(node)
}
