// Package store loads and serves the closed category catalog used by the
// extraction prompt and the sanity validator. Categories live in a YAML file
// so operators can extend them without a rebuild; embedded defaults cover
// the standard Indonesian set.
package store

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategoryFallback is the catch-all category assigned when the model output
// is outside the closed set and no alias matches.
const CategoryFallback = "lainnya"

// catalogFile is the YAML layout of a categories file.
type catalogFile struct {
	Categories []string          `yaml:"categories"`
	Aliases    map[string]string `yaml:"aliases"`
}

// Catalog is the closed category set plus an alias table mapping common
// typos, abbreviations and English terms onto canonical categories.
type Catalog struct {
	categories []string
	index      map[string]struct{}
	aliases    map[string]string
}

// defaultCategories is the canonical closed set.
var defaultCategories = []string{
	"makan",
	"minuman",
	"belanja",
	"transportasi",
	"tagihan",
	"hiburan",
	"kesehatan",
	"pendidikan",
	"gaji",
	"transfer",
	"tabungan",
	"investasi",
	CategoryFallback,
}

// defaultAliases maps frequent model slips onto canonical categories.
var defaultAliases = map[string]string{
	// abbreviations and typos
	"mkn":       "makan",
	"minum":     "minuman",
	"transport": "transportasi",
	"bill":      "tagihan",
	"health":    "kesehatan",
	"salary":    "gaji",
	// English
	"food":          "makan",
	"drink":         "minuman",
	"shopping":      "belanja",
	"entertainment": "hiburan",
	"education":     "pendidikan",
	"saving":        "tabungan",
	"savings":       "tabungan",
	"investment":    "investasi",
	// common variations
	"jajan":   "makan",
	"bensin":  "transportasi",
	"ojol":    "transportasi",
	"parkir":  "transportasi",
	"wifi":    "tagihan",
	"listrik": "tagihan",
	"pulsa":   "tagihan",
	"game":    "hiburan",
	"nonton":  "hiburan",
	"obat":    "kesehatan",
	"dokter":  "kesehatan",
	"sekolah": "pendidikan",
	"kursus":  "pendidikan",
	"nabung":  "tabungan",
	"invest":  "investasi",
	"saham":   "investasi",
	"crypto":  "investasi",
}

// NewDefaultCatalog builds a catalog from the embedded defaults.
func NewDefaultCatalog() *Catalog {
	return newCatalog(defaultCategories, defaultAliases)
}

// LoadCatalog reads a catalog from a YAML file. An empty path returns the
// default catalog. File entries replace the default categories; aliases are
// merged over the defaults so a file only needs to add its own.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewDefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read categories file %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("could not parse categories file %s: %w", path, err)
	}

	categories := file.Categories
	if len(categories) == 0 {
		categories = defaultCategories
	}

	aliases := make(map[string]string, len(defaultAliases)+len(file.Aliases))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	for k, v := range file.Aliases {
		aliases[strings.ToLower(k)] = strings.ToLower(v)
	}

	return newCatalog(categories, aliases), nil
}

func newCatalog(categories []string, aliases map[string]string) *Catalog {
	c := &Catalog{
		categories: make([]string, 0, len(categories)+1),
		index:      make(map[string]struct{}, len(categories)+1),
		aliases:    aliases,
	}
	for _, cat := range categories {
		cat = strings.ToLower(strings.TrimSpace(cat))
		if cat == "" {
			continue
		}
		if _, ok := c.index[cat]; ok {
			continue
		}
		c.categories = append(c.categories, cat)
		c.index[cat] = struct{}{}
	}
	// The fallback must always be a member of the closed set.
	if _, ok := c.index[CategoryFallback]; !ok {
		c.categories = append(c.categories, CategoryFallback)
		c.index[CategoryFallback] = struct{}{}
	}
	return c
}

// Categories returns the closed set in declaration order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// Contains reports whether the category is a member of the closed set.
func (c *Catalog) Contains(category string) bool {
	_, ok := c.index[strings.ToLower(strings.TrimSpace(category))]
	return ok
}

// Normalize maps a raw category onto the closed set. The second return value
// is true when the raw value resolved to a member, either directly or
// through an alias; false means the fallback was substituted.
func (c *Catalog) Normalize(raw string) (string, bool) {
	category := strings.ToLower(strings.TrimSpace(raw))
	if category == "" {
		return CategoryFallback, false
	}
	if _, ok := c.index[category]; ok {
		return category, true
	}
	if mapped, ok := c.aliases[category]; ok {
		if _, member := c.index[mapped]; member {
			return mapped, true
		}
	}
	return CategoryFallback, false
}
