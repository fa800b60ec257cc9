package profanity

import (
	"strings"
	"unicode"

	goaway "github.com/TwiN/go-away"
)

// Cleaner masks profane words in user-visible text. Masking keeps the first
// letter and replaces the rest with asterisks, so "word" becomes "w***".
type Cleaner struct {
	detector *goaway.ProfanityDetector
	extra    map[string]struct{}
}

// New builds a cleaner backed by the default dictionary plus any extra words
// from configuration.
func New(extraWords []string) *Cleaner {
	extra := make(map[string]struct{}, len(extraWords))
	for _, word := range extraWords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			extra[word] = struct{}{}
		}
	}
	return &Cleaner{
		detector: goaway.NewProfanityDetector(),
		extra:    extra,
	}
}

// Clean returns text with profane words masked. The input is returned
// unchanged when nothing matches.
func (c *Cleaner) Clean(text string) string {
	if c == nil || strings.TrimSpace(text) == "" {
		return text
	}

	fields := strings.Fields(text)
	changed := false
	for i, field := range fields {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if word == "" {
			continue
		}
		if !c.isProfane(word) {
			continue
		}
		fields[i] = strings.Replace(field, word, mask(word), 1)
		changed = true
	}
	if !changed {
		return text
	}
	return strings.Join(fields, " ")
}

func (c *Cleaner) isProfane(word string) bool {
	if _, ok := c.extra[strings.ToLower(word)]; ok {
		return true
	}
	if c.detector == nil {
		return false
	}
	return c.detector.IsProfane(word)
}

func mask(word string) string {
	runes := []rune(word)
	if len(runes) <= 1 {
		return string(runes)
	}
	masked := make([]rune, len(runes))
	masked[0] = runes[0]
	for i := 1; i < len(runes); i++ {
		masked[i] = '*'
	}
	return string(masked)
}
