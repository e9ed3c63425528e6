package style

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/spf13/viper"

	"tilesmith/internal/geodata"
)

// Styled is an entity with its visual attributes resolved. Colors are
// CSS hex strings, widths and radii are in pixels at scale 1.
type Styled struct {
	Geometry orb.Geometry
	Stroke   string
	Fill     string
	Width    float64
	Radius   float64
}

// Styler resolves entities to styled entities for one zoom level.
// Implementations must be pure: same input, same output, no mutation.
type Styler interface {
	Style(entities []geodata.Entity, zoom uint32) []Styled
}

// Rule maps entities carrying a property to a set of visual attributes.
// Equals empty means any value of the property matches; MaxZoom zero
// means no upper zoom bound.
type Rule struct {
	Property string
	Equals   string
	MinZoom  int
	MaxZoom  int
	Stroke   string
	Fill     string
	Width    float64
	Radius   float64
}

func (r Rule) matches(e geodata.Entity, zoom uint32) bool {
	z := int(zoom)
	if z < r.MinZoom {
		return false
	}
	if r.MaxZoom > 0 && z > r.MaxZoom {
		return false
	}
	if r.Property == "" {
		return true
	}
	v, ok := e.Props[r.Property]
	if !ok {
		return false
	}
	return r.Equals == "" || fmt.Sprintf("%v", v) == r.Equals
}

// Sheet is an ordered rule list; the first matching rule styles an
// entity, entities matching no rule are dropped.
type Sheet struct {
	rules []Rule
}

func NewSheet(rules []Rule) *Sheet {
	return &Sheet{rules: rules}
}

// LoadSheet reads a rule sheet from a config file (toml, yaml or json,
// top-level key "rules").
func LoadSheet(path string) (*Sheet, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}

	var rules []Rule
	if err := v.UnmarshalKey("rules", &rules); err != nil {
		return nil, fmt.Errorf("failed to parse style rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("style file %s contains no rules", path)
	}

	return &Sheet{rules: rules}, nil
}

// DefaultSheet covers common feature properties so rendering works
// without a style file. There is no catch-all rule: tiles whose
// entities match nothing resolve to an empty styled set.
func DefaultSheet() *Sheet {
	return &Sheet{rules: []Rule{
		{Property: "natural", Equals: "water", Fill: "#aad3df", Stroke: "#7ab8d4", Width: 1},
		{Property: "waterway", MinZoom: 8, Stroke: "#7ab8d4", Width: 1.5},
		{Property: "highway", MinZoom: 6, Stroke: "#f4a460", Width: 2},
		{Property: "building", MinZoom: 13, Fill: "#d9d0c9", Stroke: "#b5aaa0", Width: 0.5},
		{Property: "boundary", Stroke: "#9e79b8", Width: 1.5},
		{Property: "kind", Equals: "poi", Fill: "#c342f4", Radius: 3},
	}}
}

func (s *Sheet) Style(entities []geodata.Entity, zoom uint32) []Styled {
	var out []Styled
	for _, e := range entities {
		for _, r := range s.rules {
			if !r.matches(e, zoom) {
				continue
			}
			out = append(out, Styled{
				Geometry: e.Geometry,
				Stroke:   r.Stroke,
				Fill:     r.Fill,
				Width:    r.Width,
				Radius:   r.Radius,
			})
			break
		}
	}
	return out
}
