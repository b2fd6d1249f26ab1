// Package plan splits normalized text into an ordered sequence of
// size-bounded units for synthesis. Planning is deterministic: the same
// text and limit always produce the same units, so a resumed run can
// address prior work by index alone.
package plan

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrUnbreakable reports a single token longer than the unit limit with no
// whitespace split point.
var ErrUnbreakable = errors.New("token exceeds unit limit with no split point")

// TextUnit is one synthesizable slice of the source document. Indices are
// dense, start at zero and define final playback order.
type TextUnit struct {
	Index   int
	Content string
}

// Sentence boundaries: terminal punctuation followed by whitespace and a
// Latin or Cyrillic capital or an opening quote.
var sentenceEndRE = regexp.MustCompile(`[.!?]+\s`)

// Clause boundaries used when a single sentence exceeds the limit.
var clauseEndRE = regexp.MustCompile(`[,;:\-\x{2014}]\s`)

// Plan splits text into units of at most maxUnitChars runes each, preferring
// sentence boundaries, then clause boundaries, then single whitespace. A word
// longer than the limit yields ErrUnbreakable.
func Plan(text string, maxUnitChars int) ([]TextUnit, error) {
	if maxUnitChars <= 0 {
		return nil, fmt.Errorf("max unit chars must be positive, got %d", maxUnitChars)
	}

	var contents []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) > 0 {
			contents = append(contents, strings.Join(current, " "))
			current = current[:0]
			currentLen = 0
		}
	}

	for _, sentence := range splitSentences(text) {
		sentenceLen := utf8.RuneCountInString(sentence)

		if sentenceLen > maxUnitChars {
			flush()
			parts, err := splitLongSentence(sentence, maxUnitChars)
			if err != nil {
				return nil, err
			}
			contents = append(contents, parts...)
			continue
		}

		newLen := currentLen + sentenceLen
		if len(current) > 0 {
			newLen++ // joining space
		}
		if newLen > maxUnitChars {
			flush()
			current = append(current, sentence)
			currentLen = sentenceLen
			continue
		}
		current = append(current, sentence)
		currentLen = newLen
	}
	flush()

	units := make([]TextUnit, 0, len(contents))
	for _, c := range contents {
		units = append(units, TextUnit{Index: len(units), Content: c})
	}
	return units, nil
}

// splitSentences cuts text at sentence-ending punctuation followed by a
// capital letter or quote. Works for Latin and Cyrillic scripts.
func splitSentences(text string) []string {
	var sentences []string
	rest := text
	for {
		loc := findSentenceEnd(rest)
		if loc < 0 {
			break
		}
		head := strings.TrimSpace(rest[:loc])
		if head != "" {
			sentences = append(sentences, head)
		}
		rest = rest[loc:]
		rest = strings.TrimLeft(rest, " \t\n")
	}
	if tail := strings.TrimSpace(rest); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// findSentenceEnd returns the byte offset just past the first sentence
// terminator whose following rune (after whitespace) is an uppercase letter
// or an opening quote, or -1 when none exists.
func findSentenceEnd(s string) int {
	searched := 0
	for {
		loc := sentenceEndRE.FindStringIndex(s[searched:])
		if loc == nil {
			return -1
		}
		end := searched + loc[1]
		next := strings.TrimLeft(s[end:], " \t\n")
		if next == "" {
			return -1
		}
		r, _ := utf8.DecodeRuneInString(next)
		if isSentenceStart(r) {
			return end
		}
		searched += loc[1]
	}
}

func isSentenceStart(r rune) bool {
	switch {
	case 'A' <= r && r <= 'Z':
		return true
	case 'А' <= r && r <= 'Я' || r == 'Ё':
		return true
	case r == '"' || r == '«' || r == '“':
		return true
	}
	return false
}

// splitLongSentence breaks an oversized sentence at clause boundaries first,
// falling back to whitespace between words.
func splitLongSentence(sentence string, maxUnitChars int) ([]string, error) {
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			currentLen = 0
		}
	}

	for _, part := range splitAfter(sentence, clauseEndRE) {
		partLen := utf8.RuneCountInString(part)

		if partLen > maxUnitChars {
			flush()
			words, err := splitWords(part, maxUnitChars)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, words...)
			continue
		}

		newLen := currentLen + partLen
		if len(current) > 0 {
			newLen++
		}
		if newLen > maxUnitChars {
			flush()
			current = append(current, part)
			currentLen = partLen
			continue
		}
		current = append(current, part)
		currentLen = newLen
	}
	flush()
	return chunks, nil
}

func splitWords(text string, maxUnitChars int) ([]string, error) {
	var chunks []string
	var current []string
	currentLen := 0

	for _, word := range strings.Fields(text) {
		wordLen := utf8.RuneCountInString(word)
		if wordLen > maxUnitChars {
			return nil, fmt.Errorf("%w: %q (%d chars, limit %d)", ErrUnbreakable, truncate(word, 24), wordLen, maxUnitChars)
		}
		if currentLen+wordLen+1 > maxUnitChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			currentLen = 0
		}
		current = append(current, word)
		if currentLen == 0 {
			currentLen = wordLen
		} else {
			currentLen += wordLen + 1
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks, nil
}

// splitAfter cuts text after each regexp match, keeping the delimiter with
// the preceding fragment.
func splitAfter(text string, re *regexp.Regexp) []string {
	var parts []string
	rest := text
	for {
		loc := re.FindStringIndex(rest)
		if loc == nil {
			break
		}
		head := strings.TrimSpace(rest[:loc[1]])
		if head != "" {
			parts = append(parts, head)
		}
		rest = rest[loc[1]:]
	}
	if tail := strings.TrimSpace(rest); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
