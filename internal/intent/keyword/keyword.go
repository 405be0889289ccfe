// Package keyword implements the offline intent classifier: an ordered list
// of phrase rules where the earliest matching rule wins.
package keyword

import (
	"context"
	"strings"
	"unicode"

	"github.com/nadzzz/voicedesk/internal/intent"
	"github.com/nadzzz/voicedesk/internal/message"
)

// Classifier matches utterances against rules in order. A keyword matches
// where a word of the utterance starts with it: "statement" fires inside
// "statements" but "emi" does not fire inside "premium".
// Safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// New builds a classifier over rules (already validated).
func New(rules []Rule) *Classifier {
	cp := make([]Rule, len(rules))
	for i, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if n := strings.TrimSuffix(normalize(k), " "); n != " " {
				kws = append(kws, n)
			}
		}
		cp[i] = Rule{Label: r.Label, Keywords: kws}
	}
	return &Classifier{rules: cp}
}

// Name returns the classifier identifier.
func (c *Classifier) Name() string { return "keyword" }

// Classify never fails.
func (c *Classifier) Classify(_ context.Context, u message.Utterance) (*intent.Result, error) {
	return &intent.Result{
		Utterance: u,
		Label:     c.Match(u.Text()),
		Source:    intent.SourceKeyword,
	}, nil
}

// Match returns the label of the first rule with a keyword found in text,
// or the catch-all when none matches.
func (c *Classifier) Match(text string) intent.Label {
	padded := normalize(text)
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(padded, k) {
				return r.Label
			}
		}
	}
	return intent.GeneralQuery
}

// normalize lower-cases s, turns every run of non-alphanumerics into a
// single space and pads both ends. Keywords keep only the leading pad, so a
// substring test is anchored at the start of a word.
func normalize(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(words, " ") + " "
}
