// Package textproc cleans extracted document text before chunk planning.
// All functions are pure and deterministic: the same input always yields
// the same output, which resume correctness depends on downstream.
package textproc

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	spaceRunRE    = regexp.MustCompile(`[ \t]+`)
	newlineRunRE  = regexp.MustCompile(`\n{3,}`)
	doubleBlankRE = regexp.MustCompile(`\n{2,}`)
	pageNumberRE  = regexp.MustCompile(`^-?\s*\d+\s*-?$`)
	isbnRE        = regexp.MustCompile(`(?i)^ISBN[\s:\-]`)
	copyrightRE   = regexp.MustCompile(`(?i)^(©|\(c\)|Copyright)\s`)
	boilerplateRE = regexp.MustCompile(`(?i)^(All rights reserved|Published by|Printed in|First (edition|published)|Все права защищены|Издательство|Издано|Отпечатано)`)
	urlLineRE     = regexp.MustCompile(`(?i)^(https?://|www\.)\S+$`)
	tocDottedRE   = regexp.MustCompile(`^.{1,60}[.\-·…]{4,}\s*\d+\s*$`)
	trailingNumRE = regexp.MustCompile(`\d+\s*$`)
)

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// NormalizeWhitespace collapses space runs and normalizes line endings while
// preserving paragraph breaks (double newlines).
func NormalizeWhitespace(text string) string {
	text = spaceRunRE.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = newlineRunRE.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// RemovePageArtifacts drops standalone page numbers and very short
// header/footer fragments that survive PDF extraction.
func RemovePageArtifacts(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := lines[:0]

	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if pageNumberRE.MatchString(stripped) {
			continue
		}
		if len([]rune(stripped)) < 3 && !hasLetter(stripped) && stripped != "" {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}

// RemoveBoilerplate strips publishing boilerplate: ISBN and copyright lines,
// publisher notices, standalone URLs, dotted table-of-contents lines, and
// blocks of short number-terminated lines that look like a TOC.
func RemoveBoilerplate(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string

	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		switch {
		case isbnRE.MatchString(stripped),
			copyrightRE.MatchString(stripped),
			boilerplateRE.MatchString(stripped),
			urlLineRE.MatchString(stripped),
			tocDottedRE.MatchString(stripped):
			continue
		}
		cleaned = append(cleaned, line)
	}

	// Five or more consecutive short lines ending in a number is a TOC block.
	var result []string
	var buf []string
	flush := func() {
		if len(buf) < 5 {
			result = append(result, buf...)
		}
		buf = buf[:0]
	}
	for _, line := range cleaned {
		stripped := strings.TrimSpace(line)
		if stripped != "" && len([]rune(stripped)) < 60 && trailingNumRE.MatchString(stripped) {
			buf = append(buf, line)
			continue
		}
		flush()
		result = append(result, line)
	}
	flush()

	return strings.Join(result, "\n")
}

// Clean runs the full normalization pipeline. When filterMeta is set,
// publishing boilerplate is removed as well.
func Clean(text string, filterMeta bool) string {
	text = NormalizeWhitespace(text)
	text = RemovePageArtifacts(text)
	if filterMeta {
		text = RemoveBoilerplate(text)
	}
	return doubleBlankRE.ReplaceAllString(text, "\n\n")
}
