package localcache

import (
	"testing"

	"github.com/sievelang/sieve/internal/compiler/schema"
)

func TestCache_SaveAndLoad(t *testing.T) {
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer c.Close()

	cfg := schema.New("message")
	cfg.BoolFields = schema.NewFieldSet("active")
	cfg.IntFields = schema.NewFieldSet("count")

	if err := c.Save(cfg); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if loaded.DefaultField != "message" {
		t.Errorf("expected default field 'message', got %s", loaded.DefaultField)
	}
	if !loaded.BoolFields.Has("active") {
		t.Error("expected 'active' to be a bool field")
	}
	if !loaded.IntFields.Has("count") {
		t.Error("expected 'count' to be an int field")
	}
}

func TestCache_SaveReplacesPriorContents(t *testing.T) {
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer c.Close()

	first := schema.New("text")
	first.BoolFields = schema.NewFieldSet("old_field")
	c.Save(first)

	second := schema.New("text")
	second.IntFields = schema.NewFieldSet("new_field")
	if err := c.Save(second); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if loaded.BoolFields.Has("old_field") {
		t.Error("expected prior contents to be replaced")
	}
	if !loaded.IntFields.Has("new_field") {
		t.Error("expected new contents to be present")
	}
}
