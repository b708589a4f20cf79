// attrtable converts attribute tables between the spreadsheet CSV layout and
// YAML, optionally editing columns on the way.
//
// Usage:
//
//	go run ./cmd/attrtable -in data/attributes.csv -out data/attributes.yaml
//	go run ./cmd/attrtable -in data/attributes.yaml -add mana -remove stamina -sort
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/udisondev/attrpool/internal/data"
)

func main() {
	in := flag.String("in", "", "input table (.csv, .yaml or .yml)")
	out := flag.String("out", "", "output file; stdout as YAML when empty")
	add := flag.String("add", "", "comma-separated attributes to add")
	remove := flag.String("remove", "", "comma-separated attributes to remove")
	sortCols := flag.Bool("sort", false, "sort attribute columns")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "error: -in is required")
		flag.Usage()
		os.Exit(2)
	}

	table, err := data.LoadTable(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	edit(table, splitList(*add), splitList(*remove), *sortCols)

	if err := write(table, *out); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func edit(table *data.AttributeTable, add, remove []string, sortCols bool) {
	for _, name := range add {
		table.AddAttribute(name)
	}
	for _, name := range remove {
		table.RemoveAttribute(name)
	}
	if sortCols {
		table.SortAttributes()
		for _, r := range table.Records {
			r.SortAttributes(table.Attributes)
		}
	}
}

func write(table *data.AttributeTable, path string) error {
	if path == "" {
		return data.WriteTableYAML(os.Stdout, table)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := encode(f, table, filepath.Ext(path)); err != nil {
		return err
	}
	return f.Close()
}

func encode(w io.Writer, table *data.AttributeTable, ext string) error {
	switch strings.ToLower(ext) {
	case ".csv":
		return data.WriteTableCSV(w, table)
	case ".yaml", ".yml":
		return data.WriteTableYAML(w, table)
	default:
		return fmt.Errorf("unsupported output extension %q", ext)
	}
}
