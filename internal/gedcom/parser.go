// Package gedcom extracts individual name records from GEDCOM genealogy
// files. It is deliberately minimal: a single forward pass over leveled tag
// lines, caring only about INDI records and their NAME/GIVN/SURN tags.
package gedcom

import (
	"regexp"
	"strings"
)

// Individual is one parsed INDI record reduced to its display name.
type Individual struct {
	Name string
}

var lineBreaks = regexp.MustCompile(`\r\n|\n|\r`)

// indiStart matches a level-0 individual record opener, with or without a
// cross-reference id: "0 @I1@ INDI" or "0 INDI". Tag match is case-insensitive.
var indiStart = regexp.MustCompile(`(?i)^0\s+(@[^@]+@\s+)?INDI\b`)

type accumulator struct {
	name    string
	hasName bool
	given   string
	surname string
}

// NormalizeName applies GEDCOM slash-normalization: slashes around surnames
// are stripped, whitespace collapsed, and the result trimmed. An empty
// result is reported as ok=false.
func NormalizeName(raw string) (string, bool) {
	cleaned := strings.ReplaceAll(raw, "/", " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "", false
	}
	return cleaned, true
}

func (a *accumulator) resolve() (string, bool) {
	if a.hasName {
		return a.name, true
	}

	var parts []string
	if given, ok := NormalizeName(a.given); ok {
		parts = append(parts, given)
	}
	if surname, ok := NormalizeName(a.surname); ok {
		parts = append(parts, surname)
	}
	combined := strings.Join(parts, " ")
	if combined == "" {
		return "", false
	}
	return combined, true
}

// Parse walks the input once and returns the ordered sequence of named
// individuals. Nameless INDI records are dropped, never emitted empty.
func Parse(text string) []Individual {
	var people []Individual
	var current *accumulator

	flush := func() {
		if current == nil {
			return
		}
		if name, ok := current.resolve(); ok {
			people = append(people, Individual{Name: name})
		}
		current = nil
	}

	for _, rawLine := range lineBreaks.Split(text, -1) {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		tokens := strings.Fields(line)
		if tokens[0] == "0" {
			flush()
			if indiStart.MatchString(line) {
				current = &accumulator{}
			}
			continue
		}

		if current == nil || len(tokens) < 2 {
			continue
		}

		value := strings.TrimSpace(strings.Join(tokens[2:], " "))
		switch strings.ToUpper(tokens[1]) {
		case "NAME":
			name, ok := NormalizeName(value)
			current.name = name
			current.hasName = ok
		case "GIVN":
			current.given = value
		case "SURN":
			current.surname = value
		}
	}

	flush()
	return people
}
