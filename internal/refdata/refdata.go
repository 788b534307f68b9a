// Package refdata loads static reference data (locations the dropdown does
// not list, pest units) from a YAML file.
package refdata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kebunops/opsreport/internal/model"
)

// RefData is the parsed reference file.
type RefData struct {
	Locations []model.LocationRecord `yaml:"locations" json:"locations"`
	Pests     []model.NamedRecord    `yaml:"pests" json:"pests"`
}

// Load reads path. A missing file yields empty reference data, not an error.
func Load(path string) (*RefData, error) {
	if path == "" {
		return &RefData{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &RefData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading refdata %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML reference data and validates it.
func Parse(data []byte) (*RefData, error) {
	var rd RefData
	if err := yaml.Unmarshal(data, &rd); err != nil {
		return nil, fmt.Errorf("parsing refdata: %w", err)
	}
	for i, l := range rd.Locations {
		if strings.TrimSpace(l.Name) == "" {
			return nil, fmt.Errorf("refdata: location %d has no name", i+1)
		}
	}
	for i, p := range rd.Pests {
		if strings.TrimSpace(p.ID) == "" && strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("refdata: pest %d has neither id nor name", i+1)
		}
	}
	return &rd, nil
}

// Pest returns the pest with the given ID or, failing that, name
// (case-insensitive).
func (rd *RefData) Pest(key string) (model.NamedRecord, bool) {
	if rd == nil || key == "" {
		return model.NamedRecord{}, false
	}
	for _, p := range rd.Pests {
		if p.ID == key {
			return p, true
		}
	}
	for _, p := range rd.Pests {
		if strings.EqualFold(p.Name, key) {
			return p, true
		}
	}
	return model.NamedRecord{}, false
}

// Template is a starter reference file written by `config init`.
const Template = `# opsreport reference data
locations:
  - id: "5"
    name: GH 1
  - id: "7"
    name: GH 2
  - name: Nursery
    hidden: true
pests:
  - id: "1"
    name: Thrips
    unit: ekor
`
