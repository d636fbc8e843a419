package category

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor describes one layer: its key, display color and clustering mode.
type Descriptor struct {
	Key       Key    `json:"key" yaml:"key"`
	Label     string `json:"label" yaml:"label"`
	Color     string `json:"color" yaml:"color"`
	Clustered bool   `json:"clustered" yaml:"clustered"`
}

// CustomSpec is a custom category as written in configuration.
type CustomSpec struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Label string `yaml:"label" mapstructure:"label"`
	Color string `yaml:"color" mapstructure:"color"`
}

const (
	ColorTechnician = "#60a5fa"
	ColorReseller   = "#34d399"
	ColorRepair     = "#fb923c"
	ColorCustom     = "#a855f7"
	ColorFallback   = "#38bdf8"
)

var defaultDescriptors = []Descriptor{
	{Key: Vehicle, Label: "Vehicles", Color: "#22c55e", Clustered: true},
	{Key: Technician, Label: "Technicians", Color: ColorTechnician, Clustered: true},
	{Key: Reseller, Label: "Resellers", Color: ColorReseller, Clustered: true},
	{Key: Repair, Label: "Repair shops", Color: ColorRepair, Clustered: true},
}

// Taxonomy is the ordered set of layer descriptors known to the map.
type Taxonomy struct {
	order []Key
	byKey map[Key]Descriptor
}

// NewTaxonomy returns the fixed categories followed by the given custom ones.
// Custom entries with an empty or duplicate key are skipped.
func NewTaxonomy(custom []CustomSpec) *Taxonomy {
	t := &Taxonomy{byKey: make(map[Key]Descriptor)}
	for _, d := range defaultDescriptors {
		t.add(d)
	}
	for _, c := range custom {
		key := Custom(c.Key)
		if key == "" {
			continue
		}
		if _, ok := t.byKey[key]; ok {
			continue
		}
		color := strings.TrimSpace(c.Color)
		if color == "" {
			color = ColorCustom
		}
		label := strings.TrimSpace(c.Label)
		if label == "" {
			label = strings.TrimPrefix(string(key), customPrefix)
		}
		t.add(Descriptor{Key: key, Label: label, Color: color, Clustered: true})
	}
	return t
}

func (t *Taxonomy) add(d Descriptor) {
	t.order = append(t.order, d.Key)
	t.byKey[d.Key] = d
}

func (t *Taxonomy) Lookup(k Key) (Descriptor, bool) {
	if t == nil {
		return Descriptor{}, false
	}
	d, ok := t.byKey[k]
	return d, ok
}

func (t *Taxonomy) Has(k Key) bool {
	_, ok := t.Lookup(k)
	return ok
}

// Color falls back to ColorFallback for unknown keys.
func (t *Taxonomy) Color(k Key) string {
	if d, ok := t.Lookup(k); ok && d.Color != "" {
		return d.Color
	}
	return ColorFallback
}

func (t *Taxonomy) Descriptors() []Descriptor {
	if t == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.byKey[k])
	}
	return out
}

// PartnerKeys lists every category that can be matched against, in order.
func (t *Taxonomy) PartnerKeys() []Key {
	if t == nil {
		return nil
	}
	out := make([]Key, 0, len(t.order))
	for _, k := range t.order {
		if k.IsPartner() {
			out = append(out, k)
		}
	}
	return out
}

type customFile struct {
	Categories []CustomSpec `yaml:"categories"`
}

// LoadCustomFile reads custom category definitions from a standalone YAML
// file with a top-level "categories" list.
func LoadCustomFile(path string) ([]CustomSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file %q: %w", path, err)
	}
	var f customFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse categories file %q: %w", path, err)
	}
	return f.Categories, nil
}
