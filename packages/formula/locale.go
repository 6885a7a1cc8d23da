package formula

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFiles embed.FS

// localeFile is the layout of locales/<lang>.yaml.
type localeFile struct {
	Language  string            `yaml:"language"`
	Functions map[string]string `yaml:"functions"`
}

// LoadLocale returns the bundled function names for a BCP 47 tag, keyed by
// upper-cased localized name. regional tags fall back to their base
// language, so "fr-CA" loads "fr".
func LoadLocale(tag string) (map[string]string, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", tag, err)
	}
	base, _ := t.Base()

	data, err := fs.ReadFile(localeFiles, "locales/"+base.String()+".yaml")
	if err != nil {
		return nil, fmt.Errorf("locale %q: no bundled function names", tag)
	}
	return ParseLocale(data)
}

// ParseLocale reads a locale file. names on both sides are upper-cased.
func ParseLocale(data []byte) (map[string]string, error) {
	var file localeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse locale: %w", err)
	}
	names := make(map[string]string, len(file.Functions))
	for localized, canonical := range file.Functions {
		names[strings.ToUpper(localized)] = strings.ToUpper(canonical)
	}
	return names, nil
}

// Locales lists the bundled locale tags.
func Locales() []string {
	entries, err := localeFiles.ReadDir("locales")
	if err != nil {
		return nil
	}
	tags := make([]string, 0, len(entries))
	for _, e := range entries {
		tags = append(tags, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return tags
}
