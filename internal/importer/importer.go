package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/proforma/internal/model"
	"github.com/cleared-dev/proforma/internal/statement"
)

// Parser converts a change list document into an UpdateSummary.
type Parser interface {
	Parse(r io.Reader) (model.UpdateSummary, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// ForFile picks a parser from the file extension.
func (r *Registry) ForFile(path string) (Parser, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	p := r.Get(ext)
	if p == nil {
		return nil, fmt.Errorf("no change list parser for %q", filepath.Base(path))
	}
	return p, nil
}

// ParseFile reads and validates the change list at path.
func (r *Registry) ParseFile(path string) (model.UpdateSummary, error) {
	p, err := r.ForFile(path)
	if err != nil {
		return model.UpdateSummary{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return model.UpdateSummary{}, fmt.Errorf("opening change list: %w", err)
	}
	defer f.Close()

	s, err := p.Parse(f)
	if err != nil {
		return model.UpdateSummary{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := statement.CheckSummary(s); err != nil {
		return model.UpdateSummary{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&JSONParser{})
	r.Register(&CSVParser{})
	return r
}

// JSONParser reads change list documents.
type JSONParser struct{}

func (p *JSONParser) Format() string { return "json" }

func (p *JSONParser) Parse(r io.Reader) (model.UpdateSummary, error) {
	return statement.DecodeSummary(r)
}

// File names inside a filing directory.
const (
	SheetFile   = "sheet.json"
	OutputFile  = "proforma.json"
	changesBase = "changes"
)

// Filing is one filer's directory ready for a batch run.
type Filing struct {
	Name        string
	Dir         string
	SheetPath   string
	ChangesPath string
}

// OutputPath is where the reconciled sheet is written.
func (f Filing) OutputPath() string {
	return filepath.Join(f.Dir, OutputFile)
}

// ScanFilings returns the subdirectories of root holding a sheet.json and a
// changes.json or changes.csv, sorted by name. changes.json wins when both
// exist. Other directories are skipped.
func ScanFilings(root string) ([]Filing, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading filings dir: %w", err)
	}

	var filings []Filing
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		sheet := filepath.Join(dir, SheetFile)
		if !exists(sheet) {
			continue
		}
		var changes string
		for _, ext := range []string{"json", "csv"} {
			p := filepath.Join(dir, changesBase+"."+ext)
			if exists(p) {
				changes = p
				break
			}
		}
		if changes == "" {
			continue
		}
		filings = append(filings, Filing{
			Name:        e.Name(),
			Dir:         dir,
			SheetPath:   sheet,
			ChangesPath: changes,
		})
	}
	sort.Slice(filings, func(i, j int) bool { return filings[i].Name < filings[j].Name })
	return filings, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
