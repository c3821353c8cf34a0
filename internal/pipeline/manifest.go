// Package pipeline runs the full diagram workflow from a YAML manifest and
// records each run in the ledger.
package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"interdiag/internal/config"
	"interdiag/internal/decomp"
	"interdiag/internal/diagram"
)

// Manifest describes one batch run.
type Manifest struct {
	Name    string      `yaml:"name" validate:"required"`
	Decomp  DecompSpec  `yaml:"decomp"`
	HBonds  HBondSpec   `yaml:"hbonds"`
	Control ControlSpec `yaml:"control"`
	Diagram DiagramSpec `yaml:"diagram"`
}

// DecompSpec configures the aggregation stage.
type DecompSpec struct {
	Inputs      []string `yaml:"inputs" validate:"min=1,dive,required"`
	Threshold   float64  `yaml:"threshold" validate:"gte=0"`
	OmitZero    bool     `yaml:"omit_zero"`
	ValueColumn int      `yaml:"value_column" validate:"gte=0"`
}

// HBondSpec configures hbond consolidation.
type HBondSpec struct {
	Inputs []string `yaml:"inputs" validate:"min=1,dive,required"`
	Repeat int      `yaml:"repeat" validate:"gte=0"`
}

// ControlSpec either names a pre-built control file or the mapping used to
// build one.
type ControlSpec struct {
	File        string `yaml:"file"`
	Mapping     string `yaml:"mapping" validate:"required_without=File"`
	ColumnOrder string `yaml:"column_order"`
}

// DiagramSpec configures drawing.
type DiagramSpec struct {
	Title            string  `yaml:"title"`
	Compare          string  `yaml:"compare"`
	CompareThreshold float64 `yaml:"compare_threshold" validate:"gte=0"`
	OmitNone         bool    `yaml:"omit_none"`
	OmitSameColumn   bool    `yaml:"omit_same_column"`
	HBondThreshold   int     `yaml:"hbond_threshold" validate:"gte=0"`
	Format           string  `yaml:"format" validate:"omitempty,oneof=png svg"`
}

var validate = validator.New()

// LoadManifest reads path; relative input paths resolve against its
// directory.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f, filepath.Dir(path))
}

// ParseManifest decodes and validates a manifest. Unknown keys are errors.
func ParseManifest(r io.Reader, baseDir string) (*Manifest, error) {
	m := &Manifest{
		Decomp:  DecompSpec{Threshold: decomp.DefaultThreshold, ValueColumn: decomp.DefaultValueColumn},
		Diagram: DiagramSpec{CompareThreshold: diagram.DefaultCompareThreshold, Format: string(diagram.FormatPNG)},
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := validate.Struct(m); err != nil {
		return nil, config.FormatValidationError("manifest", err)
	}
	m.resolve(baseDir)
	return m, nil
}

// Paths lists every input file, in stage order.
func (m *Manifest) Paths() []string {
	out := append([]string{}, m.Decomp.Inputs...)
	out = append(out, m.HBonds.Inputs...)
	for _, p := range []string{m.Control.File, m.Control.Mapping, m.Diagram.Compare} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (m *Manifest) resolve(base string) {
	if base == "" {
		return
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i, p := range m.Decomp.Inputs {
		m.Decomp.Inputs[i] = abs(p)
	}
	for i, p := range m.HBonds.Inputs {
		m.HBonds.Inputs[i] = abs(p)
	}
	m.Control.File = abs(m.Control.File)
	m.Control.Mapping = abs(m.Control.Mapping)
	m.Diagram.Compare = abs(m.Diagram.Compare)
}
