package plugin

import (
	"fmt"
	"strings"
)

// Category is one of the fixed plugin capability contracts.
type Category string

const (
	CategoryAnalyzer    Category = "analyzer"
	CategoryProvider    Category = "provider"
	CategoryFixer       Category = "fixer"
	CategoryQuality     Category = "quality"
	CategoryIntegration Category = "integration"
)

// Categories lists every category in discovery order.
var Categories = []Category{
	CategoryAnalyzer,
	CategoryProvider,
	CategoryFixer,
	CategoryQuality,
	CategoryIntegration,
}

var categoryDirs = map[Category]string{
	CategoryAnalyzer:    "analyzers",
	CategoryProvider:    "providers",
	CategoryFixer:       "fixers",
	CategoryQuality:     "quality",
	CategoryIntegration: "integrations",
}

// ParseCategory validates a category name. Plural directory names are accepted too.
func ParseCategory(value string) (Category, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for c, dir := range categoryDirs {
		if v == string(c) || v == dir {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown plugin type %q", value)
}

// Dir returns the directory name plugins of this category live under inside a search root.
func (c Category) Dir() string {
	return categoryDirs[c]
}

func (c Category) String() string {
	return string(c)
}

// Key builds the registry key for a plugin: "type:name".
func Key(c Category, name string) string {
	return string(c) + ":" + name
}
