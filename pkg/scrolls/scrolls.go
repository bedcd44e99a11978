// Package scrolls serves the built-in catalog of living scrolls: themed
// passages of scripture with references and a practical application.
package scrolls

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed scrolls.yaml
var catalogYAML []byte

// Scroll is one themed passage.
type Scroll struct {
	Title       string `yaml:"title" json:"title"`
	Scroll      string `yaml:"scroll" json:"scroll"`
	References  string `yaml:"references" json:"references"`
	Application string `yaml:"application" json:"application"`
}

// Part groups scrolls under a heading.
type Part struct {
	Title   string   `yaml:"title" json:"title"`
	Scrolls []Scroll `yaml:"scrolls" json:"scrolls"`
}

// Catalog is the full ordered list of parts.
type Catalog []Part

// Load decodes the embedded catalog.
func Load() (Catalog, error) {
	return Parse(catalogYAML)
}

// Parse decodes a catalog document and checks that every part and scroll
// has a title.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("scrolls: decode catalog: %w", err)
	}
	for i, part := range c {
		if strings.TrimSpace(part.Title) == "" {
			return nil, fmt.Errorf("scrolls: part %d has no title", i)
		}
		for j, s := range part.Scrolls {
			if strings.TrimSpace(s.Title) == "" || strings.TrimSpace(s.Scroll) == "" {
				return nil, fmt.Errorf("scrolls: %s scroll %d is incomplete", part.Title, j)
			}
		}
	}
	return c, nil
}

// Count returns the total number of scrolls.
func (c Catalog) Count() int {
	n := 0
	for _, p := range c {
		n += len(p.Scrolls)
	}
	return n
}

// Find returns the scroll with the given title, ignoring case.
func (c Catalog) Find(title string) (Scroll, bool) {
	title = strings.TrimSpace(title)
	for _, p := range c {
		for _, s := range p.Scrolls {
			if strings.EqualFold(s.Title, title) {
				return s, true
			}
		}
	}
	return Scroll{}, false
}
