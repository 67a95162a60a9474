package ledger

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category is the fixed set of expense categories.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryDaily         Category = "daily"
	CategoryRent          Category = "rent"
	CategoryUtilities     Category = "utilities"
	CategoryTransport     Category = "transport"
	CategoryEntertainment Category = "entertainment"
	CategoryMedical       Category = "medical"
	CategoryOther         Category = "other"
)

var knownCategories = map[Category]bool{
	CategoryFood:          true,
	CategoryDaily:         true,
	CategoryRent:          true,
	CategoryUtilities:     true,
	CategoryTransport:     true,
	CategoryEntertainment: true,
	CategoryMedical:       true,
	CategoryOther:         true,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return knownCategories[c]
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// CategoryInfo is how a category is presented to users.
type CategoryInfo struct {
	Key   Category `yaml:"key"`
	Label string   `yaml:"label"`
	Emoji string   `yaml:"emoji"`
}

// Catalog lists categories in display order.
type Catalog struct {
	Categories []CategoryInfo `yaml:"categories"`
}

//go:embed categories.yaml
var defaultCatalog []byte

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("ledger: embedded category catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file. An empty path returns the default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes YAML and checks every key is a known category.
// Categories the file omits are appended with their key as label.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse category catalog: %w", err)
	}
	seen := make(map[Category]bool, len(c.Categories))
	for _, info := range c.Categories {
		if !info.Key.Valid() {
			return nil, fmt.Errorf("unknown category %q in catalog", info.Key)
		}
		if seen[info.Key] {
			return nil, fmt.Errorf("duplicate category %q in catalog", info.Key)
		}
		seen[info.Key] = true
	}
	for _, key := range []Category{
		CategoryFood, CategoryDaily, CategoryRent, CategoryUtilities,
		CategoryTransport, CategoryEntertainment, CategoryMedical, CategoryOther,
	} {
		if !seen[key] {
			c.Categories = append(c.Categories, CategoryInfo{Key: key, Label: string(key)})
		}
	}
	return &c, nil
}

// Info returns the presentation of c, falling back to its key.
func (c *Catalog) Info(key Category) CategoryInfo {
	for _, info := range c.Categories {
		if info.Key == key {
			return info
		}
	}
	return CategoryInfo{Key: key, Label: string(key)}
}

// Label returns "emoji label" for key.
func (c *Catalog) Label(key Category) string {
	info := c.Info(key)
	if info.Emoji == "" {
		return info.Label
	}
	return info.Emoji + " " + info.Label
}
