package catalogue

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	_ "embed"

	"gopkg.in/yaml.v3"

	"medfollow/pkg"
)

//go:embed phrases.yaml
var defaultPhrases []byte

// Option is one entry of an enumerated field such as the procedure type
// list shown on the patient form.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

type languageFile struct {
	Phrases map[string]string   `yaml:"phrases"`
	Options map[string][]Option `yaml:"options"`
}

type catalogueFile struct {
	Default   pkg.Language                  `yaml:"default"`
	Languages map[pkg.Language]languageFile `yaml:"languages"`
}

// Catalogue is the read-only, per-language table of message templates.  It
// is built once at startup and never mutated afterwards, so concurrent
// lookups need no locking.
type Catalogue struct {
	def   pkg.Language
	langs map[pkg.Language]languageFile
}

// Load parses the catalogue embedded in the binary.
func Load() (*Catalogue, error) {
	return Parse(defaultPhrases)
}

// MustLoad is Load for package-level initialisation and tests.
func MustLoad() *Catalogue {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile parses a catalogue from disk.  It is used when PHRASES_FILE
// overrides the embedded tables.
func LoadFile(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrases file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML catalogue data.  The default language must be present
// since every other language falls back to it key by key.
func Parse(data []byte) (*Catalogue, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode phrases: %w", err)
	}
	if f.Default == "" {
		f.Default = pkg.DefaultLanguage
	}
	if _, ok := f.Languages[f.Default]; !ok {
		return nil, errors.New("phrases: default language " + string(f.Default) + " is missing")
	}
	return &Catalogue{def: f.Default, langs: f.Languages}, nil
}

// Resolve returns lang when the catalogue carries it and the default
// language otherwise.
func (c *Catalogue) Resolve(lang pkg.Language) pkg.Language {
	if _, ok := c.langs[lang]; ok {
		return lang
	}
	return c.def
}

// Languages lists the languages present in the catalogue, sorted by name.
func (c *Catalogue) Languages() []pkg.Language {
	out := make([]pkg.Language, 0, len(c.langs))
	for l := range c.langs {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lookup returns the raw template for key.  A key absent from lang is looked
// up in the default language; ok is false only when neither has it.
func (c *Catalogue) Lookup(lang pkg.Language, key string) (string, bool) {
	if s, ok := c.langs[c.Resolve(lang)].Phrases[key]; ok {
		return s, true
	}
	s, ok := c.langs[c.def].Phrases[key]
	return s, ok
}

// Get returns the template for key, or the key itself when no language
// defines it so a missing phrase is visible rather than silent.
func (c *Catalogue) Get(lang pkg.Language, key string) string {
	if s, ok := c.Lookup(lang, key); ok {
		return s
	}
	return key
}

// Render returns the template for key with every {placeholder} in vars
// substituted.  Unknown placeholders are left as they are.
func (c *Catalogue) Render(lang pkg.Language, key string, vars map[string]string) string {
	return Fill(c.Get(lang, key), vars)
}

// Options returns the option list for field in lang, falling back to the
// default language.  The returned slice is a copy.
func (c *Catalogue) Options(lang pkg.Language, field string) []Option {
	opts, ok := c.langs[c.Resolve(lang)].Options[field]
	if !ok {
		opts = c.langs[c.def].Options[field]
	}
	out := make([]Option, len(opts))
	copy(out, opts)
	return out
}

// Fill substitutes {placeholder} tokens in tmpl.
func Fill(tmpl string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
