package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Writing temp config failed: %v", err)
	}
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeTemp(t, "scrape.json", `{
  "url": "https://books.toscrape.com/",
  "collection": "books",
  "schema": {"title": "book title", "price": "book price"},
  "options": {"pagination": true, "max_pages": 2}
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.URL != "https://books.toscrape.com/" {
		t.Errorf("Unexpected url: %s", cfg.URL)
	}
	names := cfg.Schema.FieldNames()
	if len(names) != 2 || names[0] != "title" || names[1] != "price" {
		t.Errorf("Unexpected schema fields: %v", names)
	}
	if !cfg.Options.Pagination || cfg.Options.MaxPages != 2 {
		t.Errorf("Unexpected options: %+v", cfg.Options)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeTemp(t, "scrape.yaml", `
url: https://books.toscrape.com/
schema:
  price: book price
  title: book title
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	names := cfg.Schema.FieldNames()
	if len(names) != 2 || names[0] != "price" || names[1] != "title" {
		t.Errorf("Expected document order to survive, got %v", names)
	}
	if cfg.CollectionName() != "items" {
		t.Errorf("Expected default collection, got %q", cfg.CollectionName())
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := writeTemp(t, "scrape.yaml", `
url: ""
schema:
  title: t
`)
	if _, err := Load(path); err == nil {
		t.Error("Expected a config without url to be rejected")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected a missing file to be an error")
	}
}
