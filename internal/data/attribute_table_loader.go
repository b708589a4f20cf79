package data

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadTable reads an attribute table from a .csv, .yaml or .yml file.
func LoadTable(path string) (*AttributeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening attribute table %s: %w", path, err)
	}
	defer f.Close()

	var table *AttributeTable
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		table, err = ReadTableCSV(f)
	case ".yaml", ".yml":
		table, err = ReadTableYAML(f)
	default:
		return nil, fmt.Errorf("loading attribute table %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("loading attribute table %s: %w", path, err)
	}

	slog.Info("loaded attribute table",
		"path", path,
		"attributes", len(table.Attributes),
		"records", len(table.Records))
	return table, nil
}

// ReadTableYAML decodes a table written by WriteTableYAML.
// Records are normalized to the table's column order.
func ReadTableYAML(r io.Reader) (*AttributeTable, error) {
	var table AttributeTable
	if err := yaml.NewDecoder(r).Decode(&table); err != nil {
		if errors.Is(err, io.EOF) {
			return &table, nil
		}
		return nil, fmt.Errorf("decoding table yaml: %w", err)
	}

	seen := make(map[string]struct{}, len(table.Records))
	for _, rec := range table.Records {
		if rec.Name == "" {
			return nil, errors.New("decoding table yaml: record without name")
		}
		if _, dup := seen[rec.Name]; dup {
			return nil, fmt.Errorf("decoding table yaml: duplicate record %q", rec.Name)
		}
		seen[rec.Name] = struct{}{}
		if len(table.Attributes) > 0 {
			rec.EnsureAttributes(table.Attributes)
		}
	}
	return &table, nil
}

// WriteTableYAML encodes t as YAML.
func WriteTableYAML(w io.Writer, t *AttributeTable) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encoding table yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing table yaml encoder: %w", err)
	}
	return nil
}
