package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadTableCSV parses an attribute table in the spreadsheet layout:
//
//	record_name,health,speed
//	goblin,"(0,30,30)","(1,4,8)"
//	ogre,"(0,120,120)",3
//
// The first column names the record, every other header cell names an
// attribute. A cell is either a (min,initial,max) triple or a single
// initial value; an empty cell seeds zeros.
func ReadTableCSV(r io.Reader) (*AttributeTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("reading table csv: missing header")
		}
		return nil, fmt.Errorf("reading table csv header: %w", err)
	}
	if len(header) == 0 || strings.TrimSpace(header[0]) == "" {
		return nil, errors.New("reading table csv: empty header")
	}

	columns := make([]string, 0, len(header)-1)
	for i, name := range header[1:] {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("reading table csv: column %d has no name", i+2)
		}
		columns = append(columns, name)
	}

	table := &AttributeTable{Attributes: columns}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading table csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		name := strings.TrimSpace(row[0])
		if name == "" {
			return nil, fmt.Errorf("reading table csv: line %d: empty record name", line)
		}
		if table.HasRecord(name) {
			return nil, fmt.Errorf("reading table csv: line %d: duplicate record %q", line, name)
		}

		rec := &TableRecord{Name: name, Attributes: make([]AttributeRecord, 0, len(columns))}
		for i, cell := range row[1:] {
			seed, err := parseSeedCell(cell)
			if err != nil {
				return nil, fmt.Errorf("reading table csv: line %d, %s: %w", line, columns[i], err)
			}
			seed.Name = columns[i]
			rec.Attributes = append(rec.Attributes, seed)
		}
		table.Records = append(table.Records, rec)
	}

	return table, nil
}

// parseSeedCell reads "(min,initial,max)", "min;initial;max" or "initial".
func parseSeedCell(cell string) (AttributeRecord, error) {
	cell = strings.TrimSpace(cell)
	cell = strings.TrimSuffix(strings.TrimPrefix(cell, "("), ")")
	if strings.TrimSpace(cell) == "" {
		return AttributeRecord{}, nil
	}

	parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' })
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return AttributeRecord{}, fmt.Errorf("parsing %q: %w", p, err)
		}
		values[i] = v
	}

	switch len(values) {
	case 1:
		return AttributeRecord{Initial: values[0]}, nil
	case 3:
		return AttributeRecord{Min: values[0], Initial: values[1], Max: values[2]}, nil
	default:
		return AttributeRecord{}, fmt.Errorf("expected 1 or 3 values, got %d", len(values))
	}
}

// WriteTableCSV writes t in the layout read by ReadTableCSV, always using triples.
func WriteTableCSV(w io.Writer, t *AttributeTable) error {
	cw := csv.NewWriter(w)

	header := append([]string{"record_name"}, t.Attributes...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing table csv header: %w", err)
	}

	for _, r := range t.Records {
		row := make([]string, 0, len(header))
		row = append(row, r.Name)
		for _, name := range t.Attributes {
			a := r.Attribute(name)
			if a == nil {
				row = append(row, "")
				continue
			}
			row = append(row, fmt.Sprintf("(%s,%s,%s)", formatFloat(a.Min), formatFloat(a.Initial), formatFloat(a.Max)))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing table csv record %q: %w", r.Name, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing table csv: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
