// Package report declares the dashboard pages. Each page is a list of
// sections, and each section is one parameterized aggregation plus the
// chart kind used to show it. The user may only pick values from the
// option lists a section declares.
package report

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"titus/internal/core"
)

//go:embed pages.yaml
var defaultPages []byte

// Kind selects how a section is computed and drawn.
type Kind string

const (
	KindKPI     Kind = "kpi"
	KindBar     Kind = "bar"
	KindStacked Kind = "stacked"
	KindLine    Kind = "line"
	KindScatter Kind = "scatter"
	KindMonthly Kind = "monthly"
	KindPeriods Kind = "periods"
)

type (
	Section struct {
		ID          string `yaml:"id"`
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		Kind        Kind   `yaml:"kind"`

		Group            core.Field   `yaml:"group"`
		GroupOptions     []core.Field `yaml:"group_options"`
		Secondary        core.Field   `yaml:"secondary"`
		SecondaryOptions []core.Field `yaml:"secondary_options"`
		Metrics          []core.Field `yaml:"metrics"`
		MetricOptions    []core.Field `yaml:"metric_options"`

		Reduce    string `yaml:"reduce"`
		Normalize string `yaml:"normalize"`
		Order     string `yaml:"order"`
		Limit     int    `yaml:"limit"`

		X           core.Field   `yaml:"x"`
		Y           core.Field   `yaml:"y"`
		Size        core.Field   `yaml:"size"`
		Color       core.Field   `yaml:"color"`
		AxisOptions []core.Field `yaml:"axis_options"`

		// Category splits scatter points; Focus narrows the section to one
		// value of a field picked by the user.
		Category        core.Field   `yaml:"category"`
		CategoryOptions []core.Field `yaml:"category_options"`
		Focus           core.Field   `yaml:"focus"`
	}

	Page struct {
		ID          string    `yaml:"id"`
		Title       string    `yaml:"title"`
		Description string    `yaml:"description"`
		Sections    []Section `yaml:"sections"`
	}

	Catalog struct {
		Pages []Page `yaml:"pages"`
	}
)

var (
	ErrPageNotFound    = errors.New("page not found")
	ErrSectionNotFound = errors.New("section not found")
)

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultPages)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report definitions: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Catalog, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read report definitions: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse report definitions: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks identifiers and the fields each kind needs.
func (c *Catalog) Validate() error {
	if len(c.Pages) == 0 {
		return errors.New("report definitions: no pages")
	}
	pages := make(map[string]bool)
	for _, p := range c.Pages {
		if p.ID == "" {
			return errors.New("report definitions: page without id")
		}
		if pages[p.ID] {
			return fmt.Errorf("report definitions: duplicate page %q", p.ID)
		}
		pages[p.ID] = true

		sections := make(map[string]bool)
		for _, s := range p.Sections {
			if s.ID == "" || sections[s.ID] {
				return fmt.Errorf("report definitions: page %q: missing or duplicate section id %q", p.ID, s.ID)
			}
			sections[s.ID] = true
			if err := s.validate(); err != nil {
				return fmt.Errorf("report definitions: section %s/%s: %w", p.ID, s.ID, err)
			}
		}
	}
	return nil
}

func (s Section) validate() error {
	switch s.Kind {
	case KindKPI, KindMonthly:
		return nil
	case KindBar, KindStacked, KindLine:
		if s.Group == core.FieldNone {
			return errors.New("group is required")
		}
		if len(s.Metrics) == 0 && s.Reduce != "count" {
			return errors.New("metrics are required unless reduce is count")
		}
	case KindScatter:
		if s.X == core.FieldNone || s.Y == core.FieldNone {
			return errors.New("x and y are required")
		}
	case KindPeriods:
		if s.Group == core.FieldNone || len(s.Metrics) != 1 {
			return errors.New("group and exactly one metric are required")
		}
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	return nil
}

// Page looks up a page by id.
func (c *Catalog) Page(id string) (*Page, error) {
	for i := range c.Pages {
		if c.Pages[i].ID == id {
			return &c.Pages[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPageNotFound, id)
}

// Section looks up a section by id.
func (p *Page) Section(id string) (*Section, error) {
	for i := range p.Sections {
		if p.Sections[i].ID == id {
			return &p.Sections[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrSectionNotFound, p.ID, id)
}
