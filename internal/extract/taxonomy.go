package extract

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var taxonomyYAML []byte

// Taxonomy is the marketplace's three-level category tree.
type Taxonomy struct {
	Categories []Category `yaml:"categories"`
}

// Category is a top-level category.
type Category struct {
	Name          string        `yaml:"name"`
	Subcategories []Subcategory `yaml:"subcategories"`
}

// Subcategory is a second-level category with optional leaf types.
type Subcategory struct {
	Name  string   `yaml:"name"`
	Types []string `yaml:"types"`
}

// ParseTaxonomy decodes a YAML taxonomy.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "extract: parse taxonomy")
	}
	if len(t.Categories) == 0 {
		return nil, eris.New("extract: taxonomy has no categories")
	}
	return &t, nil
}

// DefaultTaxonomy returns the embedded taxonomy.
func DefaultTaxonomy() *Taxonomy {
	t, err := ParseTaxonomy(taxonomyYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Normalize maps a category path onto canonical taxonomy names, matching
// case-insensitively. The path is cut at the first level that is unknown
// under its parent.
func (t *Taxonomy) Normalize(category, subcategory, subsub string) (string, string, string) {
	var cat *Category
	for i := range t.Categories {
		if same(t.Categories[i].Name, category) {
			cat = &t.Categories[i]
			break
		}
	}
	if cat == nil {
		return "", "", ""
	}

	var sub *Subcategory
	for i := range cat.Subcategories {
		if same(cat.Subcategories[i].Name, subcategory) {
			sub = &cat.Subcategories[i]
			break
		}
	}
	if sub == nil {
		return cat.Name, "", ""
	}

	for _, typ := range sub.Types {
		if same(typ, subsub) {
			return cat.Name, sub.Name, typ
		}
	}
	return cat.Name, sub.Name, ""
}

// Describe renders the tree as an indented outline.
func (t *Taxonomy) Describe() string {
	var b strings.Builder
	for _, c := range t.Categories {
		b.WriteString("- " + c.Name + "\n")
		for _, s := range c.Subcategories {
			b.WriteString("  - " + s.Name)
			if len(s.Types) > 0 {
				b.WriteString(": " + strings.Join(s.Types, " | "))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func same(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
