// Package gaf reads Gene Ontology annotation (GAF) files as plain tab-separated tables.
package gaf

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Table is a headerless GAF table. Rows may have different widths.
type Table struct {
	Rows [][]string
}

// Shape returns the number of rows and the widest row's column count.
func (t *Table) Shape() (rows, cols int) {
	for _, r := range t.Rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return len(t.Rows), cols
}

// ParseTable reads tab-separated rows from r. Lines starting with '!' are comments.
// The first data row is data, not a header.
func ParseTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '!'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	t := &Table{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse gaf: %w", err)
		}
		t.Rows = append(t.Rows, rec)
	}
}

// ParseFile parses the GAF file at path.
func ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ParseTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Annotation is one GAF 2.x row projected onto its named columns.
type Annotation struct {
	DB           string   `json:"db"`
	ObjectID     string   `json:"object_id"`
	Symbol       string   `json:"symbol"`
	Qualifiers   []string `json:"qualifiers,omitempty"`
	GOID         string   `json:"go_id"`
	References   []string `json:"references,omitempty"`
	EvidenceCode string   `json:"evidence_code"`
	Aspect       string   `json:"aspect"`
	ObjectName   string   `json:"object_name,omitempty"`
	Synonyms     []string `json:"synonyms,omitempty"`
	ObjectType   string   `json:"object_type,omitempty"`
	Taxon        string   `json:"taxon,omitempty"`
	Date         string   `json:"date,omitempty"`
	AssignedBy   string   `json:"assigned_by,omitempty"`
}

// minAnnotationColumns covers DB through Aspect.
const minAnnotationColumns = 9

// Annotations converts t's rows to annotations. Rows narrower than the
// mandatory GAF columns are skipped.
func Annotations(t *Table) []Annotation {
	out := make([]Annotation, 0, len(t.Rows))
	for _, r := range t.Rows {
		if len(r) < minAnnotationColumns {
			continue
		}
		a := Annotation{
			DB:           r[0],
			ObjectID:     r[1],
			Symbol:       r[2],
			Qualifiers:   splitList(r[3]),
			GOID:         r[4],
			References:   splitList(r[5]),
			EvidenceCode: r[6],
			Aspect:       r[8],
			ObjectName:   column(r, 9),
			Synonyms:     splitList(column(r, 10)),
			ObjectType:   column(r, 11),
			Taxon:        column(r, 12),
			Date:         column(r, 13),
			AssignedBy:   column(r, 14),
		}
		out = append(out, a)
	}
	return out
}

func column(r []string, i int) string {
	if i < len(r) {
		return r[i]
	}
	return ""
}

// splitList splits GAF's pipe-separated multi-value columns.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}
