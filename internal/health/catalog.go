// internal/health/catalog.go
package health

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"healthara/internal/models"
)

//go:embed foods.yaml
var defaultCatalog []byte

// Catalog maps food keywords to ingredient, allergen and diet tags.
type Catalog struct {
	Foods []CatalogEntry `yaml:"foods"`
}

// CatalogEntry is one keyword. Except lists phrases that contain the
// keyword but are a different food, like "almond milk" for "milk".
type CatalogEntry struct {
	Name   string   `yaml:"name"`
	Tags   []string `yaml:"tags"`
	Except []string `yaml:"except"`
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file. An empty path yields the default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read food catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse food catalog: %w", err)
	}
	for i := range c.Foods {
		c.Foods[i].Name = strings.ToLower(strings.TrimSpace(c.Foods[i].Name))
		c.Foods[i].Tags = models.NormalizeSet(c.Foods[i].Tags)
		c.Foods[i].Except = models.NormalizeSet(c.Foods[i].Except)
	}
	return &c, nil
}

// Resolve turns a free-text food name into a FoodItem. The name itself is
// always a tag, and every catalog entry whose keyword appears in the name as
// whole words contributes its tags. "eggplant" does not match "egg".
func (c *Catalog) Resolve(name string) models.FoodItem {
	name = strings.TrimSpace(name)
	tags := []string{name}
	if c != nil {
		words := tokenize(name)
		for _, food := range c.Foods {
			if !containsPhrase(words, food.Name) {
				continue
			}
			if anyPhrase(words, food.Except) {
				continue
			}
			tags = append(tags, food.Tags...)
		}
	}
	return models.FoodItem{Name: name, Tags: models.NormalizeSet(tags)}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func anyPhrase(words []string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(words, p) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether the words of phrase occur consecutively in
// words. The last word may carry a plural "s" or "es".
func containsPhrase(words []string, phrase string) bool {
	want := tokenize(phrase)
	if len(want) == 0 || len(want) > len(words) {
		return false
	}
	last := len(want) - 1
	for i := 0; i+len(want) <= len(words); i++ {
		match := true
		for j, w := range want {
			got := words[i+j]
			if got == w {
				continue
			}
			if j == last && (got == w+"s" || got == w+"es") {
				continue
			}
			match = false
			break
		}
		if match {
			return true
		}
	}
	return false
}
