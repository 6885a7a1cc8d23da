package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/vogtb/go-formula/packages/formula"
)

// File is the YAML form of a workbook:
//
//	sheets:
//	  - name: Sheet1
//	    cells:
//	      A1: 10
//	      A2: =A1*2
type File struct {
	Sheets []SheetFile `yaml:"sheets"`
}

// SheetFile is one worksheet of a File.
type SheetFile struct {
	Name  string         `yaml:"name"`
	Cells map[string]any `yaml:"cells"`
}

// LoadFile reads a workbook from a YAML file.
func LoadFile(path string, engine *formula.Engine, opts ...Option) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	return Load(bytes.NewReader(data), engine, opts...)
}

// Load decodes a YAML workbook. sheets and cells that cannot be added are
// skipped; the returned error combines every such failure and the
// workbook holds everything else.
func Load(r io.Reader, engine *formula.Engine, opts ...Option) (*Workbook, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode workbook: %w", err)
	}

	w := New(engine, opts...)
	var errs error
	for _, sheet := range file.Sheets {
		if err := w.AddWorksheet(sheet.Name); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sheet %q: %w", sheet.Name, err))
			continue
		}
		for _, ref := range slices.Sorted(maps.Keys(sheet.Cells)) {
			address := quoteSheet(sheet.Name) + "!" + ref
			if err := w.Set(address, sheet.Cells[ref]); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("cell %s: %w", address, err))
			}
		}
	}
	w.log.Infow("workbook loaded",
		"sheets", len(file.Sheets),
		"strings", w.strings.len(),
		"failures", len(multierr.Errors(errs)),
	)
	return w, errs
}

// quoteSheet wraps a sheet name in quotes so it survives address parsing.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
