package respcache

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultPatterns []byte

// Intent kinds
const (
	KindFAQ  = "faq"
	KindMeta = "meta"
)

// IntentSpec is the YAML form of one intent
type IntentSpec struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"`
	Patterns []string `yaml:"patterns"`
}

// PatternFile is the YAML document read by LoadClassifier
type PatternFile struct {
	Intents []IntentSpec `yaml:"intents"`
	Vetoes  []string     `yaml:"vetoes"`
}

type intent struct {
	name     string
	kind     string
	patterns []*regexp.Regexp
}

// Classifier decides whether a message may be served from or written to
// the cache. It is immutable after construction and safe for concurrent use.
type Classifier struct {
	intents []intent
	vetoes  []*regexp.Regexp
}

// DefaultClassifier returns the classifier built from the embedded patterns
func DefaultClassifier() *Classifier {
	c, err := ParseClassifier(defaultPatterns)
	if err != nil {
		panic(fmt.Sprintf("respcache: embedded patterns invalid: %v", err))
	}
	return c
}

// LoadClassifier reads patterns from a YAML file; an empty path selects the defaults
func LoadClassifier(path string) (*Classifier, error) {
	if path == "" {
		return DefaultClassifier(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read intent patterns: %w", err)
	}
	return ParseClassifier(data)
}

// ParseClassifier compiles a YAML pattern document
func ParseClassifier(data []byte) (*Classifier, error) {
	var file PatternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse intent patterns: %w", err)
	}

	c := &Classifier{}
	for _, def := range file.Intents {
		if def.Kind != KindFAQ && def.Kind != KindMeta {
			return nil, fmt.Errorf("intent %q: unknown kind %q", def.Name, def.Kind)
		}
		in := intent{name: def.Name, kind: def.Kind}
		for _, p := range def.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("intent %q: %w", def.Name, err)
			}
			in.patterns = append(in.patterns, re)
		}
		c.intents = append(c.intents, in)
	}
	for _, p := range file.Vetoes {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("veto %q: %w", p, err)
		}
		c.vetoes = append(c.vetoes, re)
	}
	return c, nil
}

// Classification is the outcome of Classify
type Classification struct {
	Cacheable bool
	Intent    string
	Kind      string
}

// Classify matches the normalized message against the intent patterns.
// Action requests are never cacheable, even when they mention a FAQ topic.
func (c *Classifier) Classify(message string) Classification {
	norm := Normalize(message)
	if norm == "" {
		return Classification{}
	}

	for _, veto := range c.vetoes {
		if veto.MatchString(norm) {
			return Classification{}
		}
	}

	for _, in := range c.intents {
		for _, re := range in.patterns {
			if re.MatchString(norm) {
				return Classification{Cacheable: true, Intent: in.name, Kind: in.kind}
			}
		}
	}
	return Classification{}
}
