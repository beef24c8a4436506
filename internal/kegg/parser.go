// Package kegg parses KEGG pathway (KGML) files into pathways, gene networks
// and indexable documents.
package kegg

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/hypogen/internal/models"
)

// ParseError reports a file that could not be parsed as pathway XML.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse pathway %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

const (
	entryTypeGene     = "gene"
	entryTypeCompound = "compound"
)

type kgml struct {
	Name      string        `xml:"name,attr"`
	Number    string        `xml:"number,attr"`
	Title     string        `xml:"title,attr"`
	Entries   []kgmlEntry   `xml:"entry"`
	Relations []kgmlRelation `xml:"relation"`
}

type kgmlEntry struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type kgmlRelation struct {
	Entry1 string `xml:"entry1,attr"`
	Entry2 string `xml:"entry2,attr"`
	Type   string `xml:"type,attr"`
}

// ParsePathway parses the pathway XML file at path.
func ParsePathway(path string) (*models.Pathway, error) {
	doc, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return doc.pathway(), nil
}

// ParsePathwayReader parses pathway XML from r; name identifies the source in errors.
func ParsePathwayReader(r io.Reader, name string) (*models.Pathway, error) {
	doc, err := decode(r, name)
	if err != nil {
		return nil, err
	}
	return doc.pathway(), nil
}

// ParseDirectory parses every .xml file directly inside dir, in name order.
// The first failure aborts the scan.
func ParseDirectory(ctx context.Context, dir string) ([]*models.Pathway, error) {
	paths, err := xmlFiles(dir)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Pathway, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pw, err := ParsePathway(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pw)
	}
	return out, nil
}

func (k *kgml) pathway() *models.Pathway {
	p := &models.Pathway{
		ID:        lastSegment(k.Name),
		Number:    k.Number,
		Title:     k.Title,
		Genes:     []models.Gene{},
		Compounds: []string{},
	}
	for _, e := range k.Entries {
		switch e.Type {
		case entryTypeGene:
			if g, ok := geneFromName(e.Name); ok {
				p.Genes = append(p.Genes, g)
			}
		case entryTypeCompound:
			p.Compounds = append(p.Compounds, e.Name)
		}
	}
	return p
}

// geneFromName derives a Gene from an entry name such as "hsa:3098 hsa:3099".
// An empty name yields no gene.
func geneFromName(raw string) (models.Gene, bool) {
	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return models.Gene{}, false
	}
	aliases := make([]string, 0, len(tokens)-1)
	for _, t := range tokens[1:] {
		aliases = append(aliases, lastSegment(t))
	}
	return models.Gene{ID: lastSegment(tokens[0]), Name: tokens[0], Aliases: aliases}, true
}

// lastSegment returns the part of s after its last ':'.
func lastSegment(s string) string {
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func readFile(path string) (*kgml, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()
	return decode(f, path)
}

func decode(r io.Reader, name string) (*kgml, error) {
	var doc kgml
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ParseError{Path: name, Err: err}
	}
	return &doc, nil
}

func xmlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
