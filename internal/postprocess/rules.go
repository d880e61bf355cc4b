// Package postprocess reformats answers to known question categories into
// scannable bullet lists using a declarative rule table.
package postprocess

import (
	"errors"
	"fmt"
	"strings"
)

// Phrase is a fixed substring looked up in the raw answer.
type Phrase struct {
	Text string `yaml:"text"`
	Fold bool   `yaml:"fold,omitempty"` // case-insensitive
}

func (p Phrase) foundIn(answer, lowered string) bool {
	if p.Fold {
		return strings.Contains(lowered, strings.ToLower(p.Text))
	}
	return strings.Contains(answer, p.Text)
}

// Detail is optional text spliced into a bullet at "{detail}" when all of
// its phrases are present.
type Detail struct {
	AllOf []Phrase `yaml:"all_of"`
	Text  string   `yaml:"text"`
}

// Bullet emits Text when at least one AnyOf phrase and every AllOf phrase
// is found in the answer. Empty lists impose no condition.
type Bullet struct {
	AnyOf  []Phrase `yaml:"any_of,omitempty"`
	AllOf  []Phrase `yaml:"all_of,omitempty"`
	Text   string   `yaml:"text"`
	Detail *Detail  `yaml:"detail,omitempty"`
}

// Rule fires when the lower-cased question contains any trigger keyword.
type Rule struct {
	Name     string   `yaml:"name"`
	Triggers []string `yaml:"triggers"`
	Heading  string   `yaml:"heading"`
	Bullets  []Bullet `yaml:"bullets"`
}

// Validate checks that a rule can ever fire and produce output.
func (r Rule) Validate() error {
	if len(r.Triggers) == 0 {
		return fmt.Errorf("rule %q has no triggers", r.Name)
	}
	if len(r.Bullets) == 0 {
		return fmt.Errorf("rule %q has no bullets", r.Name)
	}
	for i, b := range r.Bullets {
		if b.Text == "" {
			return fmt.Errorf("rule %q bullet %d has no text", r.Name, i)
		}
		if len(b.AnyOf) == 0 && len(b.AllOf) == 0 {
			return fmt.Errorf("rule %q bullet %d has no phrases", r.Name, i)
		}
	}
	return nil
}

func (r Rule) triggeredBy(question string) bool {
	q := strings.ToLower(question)
	for _, t := range r.Triggers {
		if t != "" && strings.Contains(q, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func (b Bullet) render(answer, lowered string) (string, bool) {
	if len(b.AnyOf) > 0 && !anyFound(b.AnyOf, answer, lowered) {
		return "", false
	}
	if !allFound(b.AllOf, answer, lowered) {
		return "", false
	}
	detail := ""
	if b.Detail != nil && allFound(b.Detail.AllOf, answer, lowered) {
		detail = b.Detail.Text
	}
	return strings.ReplaceAll(b.Text, "{detail}", detail), true
}

func anyFound(ps []Phrase, answer, lowered string) bool {
	for _, p := range ps {
		if p.foundIn(answer, lowered) {
			return true
		}
	}
	return false
}

func allFound(ps []Phrase, answer, lowered string) bool {
	for _, p := range ps {
		if !p.foundIn(answer, lowered) {
			return false
		}
	}
	return true
}

// BulletPrefix starts every emitted bullet line.
const BulletPrefix = "• "

// Processor applies the first matching rule to an answer.
type Processor struct {
	rules []Rule
}

// New returns a Processor over rules, or over DefaultRules when rules is empty.
func New(rules []Rule) (*Processor, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	var errs []error
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Processor{rules: rules}, nil
}

// Apply rewrites raw when the question triggers a rule and at least one of
// the rule's bullets matches; otherwise raw is returned unchanged.
func (p *Processor) Apply(question, raw string) string {
	lowered := strings.ToLower(raw)
	for _, r := range p.rules {
		if !r.triggeredBy(question) {
			continue
		}
		var lines []string
		for _, b := range r.Bullets {
			if line, ok := b.render(raw, lowered); ok {
				lines = append(lines, BulletPrefix+line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		return r.Heading + "\n\n" + strings.Join(lines, "\n")
	}
	return raw
}

// DefaultRules is the built-in table: lunch logistics.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "lunch",
			Triggers: []string{"lunch", "food", "eat"},
			Heading:  "Regarding lunch:",
			Bullets: []Bullet{
				{
					AnyOf: []Phrase{{Text: "provided to all"}},
					Text:  "Lunch will be provided to all participants who have checked in at the venue.",
				},
				{
					AllOf: []Phrase{{Text: "cafeteria", Fold: true}, {Text: "floor", Fold: true}},
					Text:  "It will be served in the Cafeteria on the 5th floor{detail}.",
					Detail: &Detail{
						AllOf: []Phrase{{Text: "1:00"}, {Text: "2:00"}},
						Text:  " between 1:00 PM and 2:00 PM IST",
					},
				},
				{
					AnyOf: []Phrase{{Text: "check-in", Fold: true}, {Text: "registration", Fold: true}},
					Text:  "Please ensure you've completed the check-in process at the registration desk to be eligible.",
				},
				{
					AnyOf: []Phrase{{Text: "volunteer", Fold: true}, {Text: "direction", Fold: true}},
					Text:  "Feel free to ask a volunteer if you need directions to the cafeteria.",
				},
			},
		},
	}
}
