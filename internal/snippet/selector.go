// Package snippet picks bounded context windows out of knowledge base text
// for question generation.
package snippet

import (
	"errors"
	"math/rand"
	"strings"
	"unicode/utf8"

	prose "github.com/jdkato/prose/v2"
)

// ErrNoContent reports that the knowledge base holds no extractable text, so
// there is nothing to build a question from.
var ErrNoContent = errors.New("no content available")

const DefaultMaxChars = 2000

// Selector extracts a random snippet of at most maxChars characters,
// extended to the nearest sentence boundary so generated questions are not
// fed a sentence fragment. The rand source is injected so selection is
// reproducible under test.
type Selector struct {
	maxChars int
	rng      *rand.Rand
}

func NewSelector(maxChars int, rng *rand.Rand) *Selector {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Selector{maxChars: maxChars, rng: rng}
}

// Select joins the document texts and returns a snippet starting at a random
// offset. Short content is returned whole.
func (s *Selector) Select(texts []string) (string, error) {
	var parts []string
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoContent
	}

	content := strings.Join(parts, "\n\n")
	runes := []rune(content)
	if len(runes) <= s.maxChars {
		return content, nil
	}

	start := s.rng.Intn(len(runes) - s.maxChars + 1)
	window := runes[start:]

	return s.clipToSentence(string(window)), nil
}

// clipToSentence cuts the window at the first sentence boundary at or past
// maxChars. If tokenization finds no boundary within a reasonable overshoot,
// it falls back to a hard cut at maxChars.
func (s *Selector) clipToSentence(window string) string {
	// Tokenize only a bounded lookahead past the target, not the whole tail.
	lookahead := s.maxChars + s.maxChars/4
	runes := []rune(window)
	if len(runes) > lookahead {
		runes = runes[:lookahead]
	}

	doc, err := prose.NewDocument(string(runes),
		prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		return string(runes[:min(s.maxChars, len(runes))])
	}

	var sb strings.Builder
	for _, sent := range doc.Sentences() {
		next := utf8.RuneCountInString(sent.Text) + 1
		if sb.Len() > 0 && utf8.RuneCountInString(sb.String())+next > lookahead {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(sent.Text)
		if utf8.RuneCountInString(sb.String()) >= s.maxChars {
			break
		}
	}

	out := sb.String()
	if out == "" {
		return string(runes[:min(s.maxChars, len(runes))])
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
