package emit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestTerm(t *testing.T) {
	assert.JSONEq(t, `{"term":{"active":true}}`, marshal(t, Term("active", true)))
}

func TestTermRange_EqIsTerm(t *testing.T) {
	assert.JSONEq(t, `{"term":{"age":30}}`, marshal(t, TermRange("age", RangeEq, 30)))
}

func TestTermRange_Bounds(t *testing.T) {
	assert.JSONEq(t, `{"range":{"age":{"lt":30}}}`, marshal(t, TermRange("age", RangeLt, 30)))
	assert.JSONEq(t, `{"range":{"age":{"lte":30}}}`, marshal(t, TermRange("age", RangeLte, 30)))
	assert.JSONEq(t, `{"range":{"age":{"gt":30}}}`, marshal(t, TermRange("age", RangeGt, 30)))
	assert.JSONEq(t, `{"range":{"age":{"gte":30}}}`, marshal(t, TermRange("age", RangeGte, 30)))
}

func TestFuzzRange(t *testing.T) {
	assert.JSONEq(t, `{"range":{"age":{"gte":25,"lte":35}}}`, marshal(t, FuzzRange("age", 30, 5)))
	// fuzz magnitude is the absolute value
	assert.JSONEq(t, `{"range":{"age":{"gte":25,"lte":35}}}`, marshal(t, FuzzRange("age", 30, -5)))
}

func TestDateRange_AsymmetricBounds(t *testing.T) {
	lower, upper := "2024-01-01T00:00:00+00:00", "2024-01-02T00:00:00+00:00"

	assert.JSONEq(t, `{"range":{"d":{"gte":"2024-01-01T00:00:00+00:00","lt":"2024-01-02T00:00:00+00:00"}}}`,
		marshal(t, DateRange("d", RangeEq, lower, upper)))
	assert.JSONEq(t, `{"range":{"d":{"lt":"2024-01-01T00:00:00+00:00"}}}`,
		marshal(t, DateRange("d", RangeLt, lower, upper)))
	assert.JSONEq(t, `{"range":{"d":{"gte":"2024-01-01T00:00:00+00:00"}}}`,
		marshal(t, DateRange("d", RangeGte, lower, upper)))
	assert.JSONEq(t, `{"range":{"d":{"lte":"2024-01-02T00:00:00+00:00"}}}`,
		marshal(t, DateRange("d", RangeLte, lower, upper)))
	assert.JSONEq(t, `{"range":{"d":{"gt":"2024-01-02T00:00:00+00:00"}}}`,
		marshal(t, DateRange("d", RangeGt, lower, upper)))
}

func TestBoolWrapping(t *testing.T) {
	a := Term("f", "a")
	b := Term("f", "b")

	assert.JSONEq(t, `{"bool":{"must":[{"term":{"f":"a"}},{"term":{"f":"b"}}]}}`,
		marshal(t, Must([]any{a, b})))
	assert.JSONEq(t, `{"bool":{"should":[{"term":{"f":"a"}},{"term":{"f":"b"}}]}}`,
		marshal(t, Should([]any{a, b})))
	assert.JSONEq(t, `{"bool":{"must_not":{"term":{"f":"a"}}}}`,
		marshal(t, MustNot(a)))
}

func TestFunctionScore(t *testing.T) {
	assert.JSONEq(t, `{"function_score":{"query":{"term":{"f":"a"}},"boost":2.5}}`,
		marshal(t, FunctionScore(Term("f", "a"), 2.5)))
}

func TestMatchNone(t *testing.T) {
	assert.JSONEq(t, `{"match_none":{}}`, marshal(t, MatchNone()))
}

func TestFoldRelativeDate_OneDayAgo(t *testing.T) {
	now, err := time.Parse(time.RFC3339, "2024-01-15T12:00:00Z")
	require.NoError(t, err)

	lower, upper := FoldRelativeDate(now, 1, RelativeMultipliers["day"], -1)

	assert.Equal(t, "2024-01-13T12:00:00+00:00", FormatInstant(lower))
	assert.Equal(t, "2024-01-14T12:00:00+00:00", FormatInstant(upper))
}

func TestFoldRelativeDate_FromNow(t *testing.T) {
	now, err := time.Parse(time.RFC3339, "2024-01-15T12:00:00Z")
	require.NoError(t, err)

	lower, upper := FoldRelativeDate(now, 1, RelativeMultipliers["hour"], 1)

	assert.Equal(t, "2024-01-15T13:00:00+00:00", FormatInstant(lower))
	assert.Equal(t, "2024-01-15T13:00:00+00:00", FormatInstant(upper))
}

func TestFoldAbsoluteDate_YearPrecision(t *testing.T) {
	lower, upper := FoldAbsoluteDate(2024, 1, 1, 0, 0, 0, PrecisionYear, time.UTC)
	assert.Equal(t, "2024-01-01T00:00:00+00:00", FormatInstant(lower))
	assert.Equal(t, "2024-12-31T00:00:00+00:00", FormatInstant(upper))
}

func TestRelativeMultipliers_MonthBugPreserved(t *testing.T) {
	// 60*60*24*7*30, not the "corrected" 60*60*24*30 — preserved deliberately.
	assert.EqualValues(t, 60*60*24*7*30, RelativeMultipliers["month"])
}
