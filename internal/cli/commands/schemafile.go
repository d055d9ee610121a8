package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sievelang/sieve/internal/compiler/schema"
)

// schemaDoc is the on-disk JSON shape of a field-classification table, used
// by the "file" schema source: the format the `sieve schema` wizard writes
// to and the `compile`/`serve` commands read from when no live Postgres
// connection is configured (internal/schemastore/postgres owns the
// Postgres-backed equivalent of this same table).
type schemaDoc struct {
	DefaultField string   `json:"default_field"`
	BoolFields   []string `json:"bool_fields"`
	DateFields   []string `json:"date_fields"`
	FloatFields  []string `json:"float_fields"`
	IntFields    []string `json:"int_fields"`
	IPFields     []string `json:"ip_fields"`
	Literal      []string `json:"literal_fields"`
	Ngram        []string `json:"ngram_fields"`
	Custom       []string `json:"custom_fields"`
}

func loadSchemaFile(path string) (*schema.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}

	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}

	cfg := schema.New(doc.DefaultField)
	cfg.BoolFields = schema.NewFieldSet(doc.BoolFields...)
	cfg.DateFields = schema.NewFieldSet(doc.DateFields...)
	cfg.FloatFields = schema.NewFieldSet(doc.FloatFields...)
	cfg.IntFields = schema.NewFieldSet(doc.IntFields...)
	cfg.IPFields = schema.NewFieldSet(doc.IPFields...)
	cfg.LiteralFields = schema.NewFieldSet(doc.Literal...)
	cfg.NgramFields = schema.NewFieldSet(doc.Ngram...)
	cfg.CustomFields = schema.NewFieldSet(doc.Custom...)

	return cfg, nil
}

func saveSchemaFile(path string, cfg *schema.Config) error {
	doc := schemaDoc{
		DefaultField: cfg.DefaultField,
		BoolFields:   fieldNames(cfg.BoolFields),
		DateFields:   fieldNames(cfg.DateFields),
		FloatFields:  fieldNames(cfg.FloatFields),
		IntFields:    fieldNames(cfg.IntFields),
		IPFields:     fieldNames(cfg.IPFields),
		Literal:      fieldNames(cfg.LiteralFields),
		Ngram:        fieldNames(cfg.NgramFields),
		Custom:       fieldNames(cfg.CustomFields),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema file: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write schema file %s: %w", path, err)
	}
	return nil
}

func fieldNames(fs schema.FieldSet) []string {
	names := make([]string, 0, len(fs))
	for name := range fs {
		names = append(names, name)
	}
	return names
}
