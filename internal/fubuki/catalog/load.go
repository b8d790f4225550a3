package catalog

import (
	"bytes"
	"embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaFS embed.FS

// file is the top-level shape of a catalog YAML document.
type file struct {
	Entries []Entry `yaml:"entries"`
}

// Load reads, validates, and builds a Catalog from the YAML file at path.
// Validation happens in two passes: the embedded JSON Schema catches
// structural mistakes with a precise location, then New enforces the
// semantic invariants (unique titles, non-empty normalized keywords).
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Catalog from raw YAML bytes. Exposed separately from Load
// so tests and embedded catalogs can skip the filesystem.
func Parse(data []byte) (*Catalog, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	c, err := New(f.Entries)
	if err != nil {
		return nil, err
	}

	slog.Info("catalog loaded", "entries", c.Len())
	return c, nil
}

// validateSchema checks the decoded document against the embedded JSON Schema.
func validateSchema(data []byte) error {
	// The schema validator operates on generic JSON-ish values, so decode
	// the YAML into interface{} first.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("catalog: decode for validation: %w", err)
	}

	schemaData, err := schemaFS.ReadFile("schema.json")
	if err != nil {
		return fmt.Errorf("catalog: read embedded schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("catalog.schema.json", bytes.NewReader(schemaData)); err != nil {
		return fmt.Errorf("catalog: register schema: %w", err)
	}
	schema, err := compiler.Compile("catalog.schema.json")
	if err != nil {
		return fmt.Errorf("catalog: compile schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("catalog: schema validation: %w", err)
	}
	return nil
}
