package news

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Rule maps a feed-title substring to a source label. Children refine the
// match (e.g. a provider, then a section of it); the first matching child
// wins and the parent label is used when none matches.
type Rule struct {
	Match    string `yaml:"match"`
	Label    string `yaml:"label"`
	Children []Rule `yaml:"children,omitempty"`
}

// Labels is an ordered rule table with a fallback label.
type Labels struct {
	Rules    []Rule `yaml:"rules"`
	Fallback string `yaml:"fallback"`
}

const (
	defaultFallback = "财经资讯"
	prefixRunes     = 10
)

// DefaultLabels covers the providers the bot was built for.
func DefaultLabels() Labels {
	return Labels{
		Rules: []Rule{
			{Match: "Bloomberg", Label: "彭博社", Children: []Rule{
				{Match: "Market", Label: "彭博市场"},
				{Match: "Economics", Label: "彭博经济"},
			}},
			{Match: "Investing", Label: "英为财情"},
		},
		Fallback: defaultFallback,
	}
}

// LoadLabels reads a YAML rule table. Rules are used in file order.
func LoadLabels(path string) (Labels, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Labels{}, fmt.Errorf("read label rules: %w", err)
	}
	var l Labels
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return Labels{}, fmt.Errorf("parse label rules %s: %w", path, err)
	}
	if err := validateRules(l.Rules); err != nil {
		return Labels{}, fmt.Errorf("label rules %s: %w", path, err)
	}
	if l.Fallback == "" {
		l.Fallback = defaultFallback
	}
	return l, nil
}

func validateRules(rules []Rule) error {
	for i, r := range rules {
		if r.Match == "" || r.Label == "" {
			return fmt.Errorf("rule %d needs both match and label", i)
		}
		if err := validateRules(r.Children); err != nil {
			return fmt.Errorf("rule %q: %w", r.Match, err)
		}
	}
	return nil
}

// Classify returns the label of the first matching rule, or a label derived
// from the feed title itself.
func (l Labels) Classify(feedTitle string) string {
	if label, ok := match(l.Rules, feedTitle); ok {
		return label
	}
	fallback := l.Fallback
	if fallback == "" {
		fallback = defaultFallback
	}
	if short := shortTitle(feedTitle); short != "" {
		return short
	}
	return fallback
}

func match(rules []Rule, title string) (string, bool) {
	for _, r := range rules {
		if !strings.Contains(title, r.Match) {
			continue
		}
		if child, ok := match(r.Children, title); ok {
			return child, true
		}
		return r.Label, true
	}
	return "", false
}

var boilerplate = regexp.MustCompile(`(?i)\b(latest news|top stories|headlines|rss|feeds?)\b|[|:\-–—»·]`)

// shortTitle strips feed boilerplate and keeps a short prefix, cut back to a
// word boundary when the cut lands inside a word.
func shortTitle(title string) string {
	s := boilerplate.ReplaceAllString(title, " ")
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= prefixRunes {
		return s
	}

	runes := []rune(s)
	cut := string(runes[:prefixRunes])
	if runes[prefixRunes] != ' ' {
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimSpace(cut)
}
