package parser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievelang/sieve/internal/compiler/cerr"
	"github.com/sievelang/sieve/internal/compiler/clock"
	"github.com/sievelang/sieve/internal/compiler/schema"
)

func testConfig() *schema.Config {
	cfg := schema.New("text")
	cfg.IntFields = schema.NewFieldSet("age")
	cfg.FloatFields = schema.NewFieldSet("price")
	cfg.BoolFields = schema.NewFieldSet("active")
	cfg.DateFields = schema.NewFieldSet("created")
	cfg.IPFields = schema.NewFieldSet("host")
	return cfg
}

func fixedClock() clock.Clock {
	t, err := time.Parse(time.RFC3339, "2024-01-15T12:00:00Z")
	if err != nil {
		panic(err)
	}
	return clock.Fixed{At: t}
}

func parseJSON(t *testing.T, input string) string {
	t.Helper()
	p := New(testConfig(), fixedClock())
	node, err := p.Parse(input)
	require.NoError(t, err)
	b, err := json.Marshal(node)
	require.NoError(t, err)
	return string(b)
}

func parseErr(t *testing.T, input string) error {
	t.Helper()
	p := New(testConfig(), fixedClock())
	_, err := p.Parse(input)
	require.Error(t, err)
	return err
}

func TestParse_DefaultFieldTerm(t *testing.T) {
	assert.JSONEq(t, `{"term":{"text":"hello"}}`, parseJSON(t, "hello"))
}

func TestParse_AdjacentTermsAreJunk(t *testing.T) {
	err := parseErr(t, "hello world")
	var ii *cerr.InvalidInput
	require.ErrorAs(t, err, &ii)
	assert.Contains(t, ii.Message, "Junk at end of expression")
}

func TestParse_AndRange(t *testing.T) {
	assert.JSONEq(t,
		`{"bool":{"must":[{"range":{"age":{"gte":18}}},{"range":{"age":{"lt":65}}}]}}`,
		parseJSON(t, "age.gte:18 AND age.lt:65"))
}

func TestParse_IntFuzz(t *testing.T) {
	assert.JSONEq(t, `{"range":{"age":{"gte":25,"lte":35}}}`, parseJSON(t, "age:30 ~ 5"))
}

func TestParse_Not(t *testing.T) {
	assert.JSONEq(t, `{"bool":{"must_not":{"term":{"active":true}}}}`, parseJSON(t, "NOT active:true"))
}

func TestParse_RelativeDate(t *testing.T) {
	assert.JSONEq(t,
		`{"range":{"created":{"gt":"2024-01-14T12:00:00+00:00"}}}`,
		parseJSON(t, "created.gt:1 day ago"))
}

func TestParse_QuotedTerm(t *testing.T) {
	assert.JSONEq(t, `{"term":{"text":"exact phrase"}}`, parseJSON(t, `"exact phrase"`))
}

func TestParse_GroupingAndPrecedence(t *testing.T) {
	assert.JSONEq(t,
		`{"bool":{"must":[{"bool":{"should":[{"term":{"text":"a"}},{"term":{"text":"b"}}]}},{"term":{"text":"c"}}]}}`,
		parseJSON(t, "(a OR b) AND c"))
}

func TestParse_OrAndPrecedence(t *testing.T) {
	// A OR B AND C parses as A OR (B AND C).
	assert.JSONEq(t,
		`{"bool":{"should":[{"term":{"text":"a"}},{"bool":{"must":[{"term":{"text":"b"}},{"term":{"text":"c"}}]}}]}}`,
		parseJSON(t, "a OR b AND c"))
}

func TestParse_NotBindsAcrossAnd(t *testing.T) {
	// NOT A AND B parses as NOT (A AND B), not (NOT A) AND B.
	assert.JSONEq(t,
		`{"bool":{"must_not":{"bool":{"must":[{"term":{"text":"a"}},{"term":{"text":"b"}}]}}}}`,
		parseJSON(t, "NOT a AND b"))
}

func TestParse_RightAssociativeAnd(t *testing.T) {
	assert.JSONEq(t,
		`{"bool":{"must":[{"term":{"text":"a"}},{"bool":{"must":[{"term":{"text":"b"}},{"term":{"text":"c"}}]}}]}}`,
		parseJSON(t, "a AND b AND c"))
}

func TestParse_DoubleNegationNotSimplified(t *testing.T) {
	assert.JSONEq(t,
		`{"bool":{"must_not":{"bool":{"must_not":{"term":{"text":"q"}}}}}}`,
		parseJSON(t, "NOT NOT q"))
}

func TestParse_EmptyInput(t *testing.T) {
	assert.JSONEq(t, `{"match_none":{}}`, parseJSON(t, ""))
	assert.JSONEq(t, `{"match_none":{}}`, parseJSON(t, "\n\n"))
}

func TestParse_ManyLinesEmitShould(t *testing.T) {
	assert.JSONEq(t,
		`{"bool":{"should":[{"term":{"text":"a"}},{"term":{"text":"b"}}]}}`,
		parseJSON(t, "a\nb"))
}

func TestParse_Boost(t *testing.T) {
	assert.JSONEq(t,
		`{"function_score":{"query":{"term":{"text":"hello"}},"boost":2.5}}`,
		parseJSON(t, "hello ^2.5"))
}

func TestParse_NegativeBoostIsFatal(t *testing.T) {
	err := parseErr(t, "hello ^-2")
	var ii *cerr.InvalidInput
	require.ErrorAs(t, err, &ii)
}

func TestParse_IntFieldWrongShapeIsFatal(t *testing.T) {
	err := parseErr(t, "age:abc")
	var ii *cerr.InvalidInput
	require.ErrorAs(t, err, &ii)
}

func TestParse_FuzzOnRangeIsFatal(t *testing.T) {
	err := parseErr(t, "age.gt:30 ~ 5")
	var ii *cerr.InvalidInput
	require.ErrorAs(t, err, &ii)
	assert.Contains(t, ii.Message, "Multiple ranges specified")
}

func TestParse_ImbalancedParens(t *testing.T) {
	err := parseErr(t, "(a AND b")
	var ii *cerr.InvalidInput
	require.ErrorAs(t, err, &ii)
	assert.Contains(t, ii.Message, "Imbalanced parentheses")
}

func TestParse_IdempotentWhitespace(t *testing.T) {
	a := parseJSON(t, "age.gte:18 AND age.lt:65")
	b := parseJSON(t, "age.gte:18    AND    age.lt:65")
	assert.JSONEq(t, a, b)
}

func TestParse_AbsoluteDateYearPrecision(t *testing.T) {
	assert.JSONEq(t,
		`{"range":{"created":{"lt":"2024-01-01T00:00:00+00:00"}}}`,
		parseJSON(t, "created.lt:2024"))
}

func TestParse_IPField(t *testing.T) {
	assert.JSONEq(t, `{"term":{"host":"10.0.0.1/24"}}`, parseJSON(t, "host:10.0.0.1/24"))
}

func TestParse_DeeplyNestedExceedsCap(t *testing.T) {
	input := ""
	for i := 0; i < 200; i++ {
		input += "("
	}
	input += "a"
	for i := 0; i < 200; i++ {
		input += ")"
	}
	err := parseErr(t, input)
	var ii *cerr.InvalidInput
	require.ErrorAs(t, err, &ii)
	assert.Contains(t, ii.Message, "too deeply nested")
}
