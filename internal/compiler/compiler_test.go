package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievelang/sieve/internal/compiler/clock"
	"github.com/sievelang/sieve/internal/compiler/schema"
)

func testConfig() schema.Config {
	cfg := schema.New("text")
	cfg.IntFields = schema.NewFieldSet("age")
	cfg.BoolFields = schema.NewFieldSet("active")
	cfg.DateFields = schema.NewFieldSet("created")
	return *cfg
}

func TestCompile_HappyPath(t *testing.T) {
	now, err := time.Parse(time.RFC3339, "2024-01-15T12:00:00Z")
	require.NoError(t, err)

	out, err := Compile("active:true", testConfig(), clock.Fixed{At: now})
	require.NoError(t, err)
	assert.JSONEq(t, `{"term":{"active":true}}`, string(out))
}

func TestCompile_InvalidInput(t *testing.T) {
	_, err := Compile("age:notanumber", testConfig(), clock.System{})
	require.Error(t, err)
}

func TestCompile_RejectsFieldInTwoSets(t *testing.T) {
	cfg := testConfig()
	cfg.FloatFields = schema.NewFieldSet("age")

	_, err := Compile("age:5", cfg, clock.System{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "age")
}

func TestCompile_EmptyInput(t *testing.T) {
	out, err := Compile("", testConfig(), clock.System{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"match_none":{}}`, string(out))
}
