// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Code extraction from markdown-formatted model replies

package extract

import (
	"regexp"
	"strings"
)

// FenceMarker opens and closes a fenced code block
const FenceMarker = "```"

var (
	// sceneClassRegex matches a class deriving from Scene or one of its variants
	sceneClassRegex = regexp.MustCompile(`(?m)^\s*class\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(\s*(?:[A-Za-z_][A-Za-z0-9_.]*\.)?[A-Za-z]*Scene\s*\)\s*:`)
	// identRegex validates a scene identifier passed to the renderer
	identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Extraction is the result of pulling source code out of a reply
type Extraction struct {
	Code     string // Trimmed code
	Language string // Language hint after the opening fence, if any
	Fenced   bool   // False when no fenced block was found and the whole input was used
}

// Extract returns the interior of the first fenced block in text.
// The opening marker may follow prose on the same line; the rest of that line
// is the language hint. Without a fenced block the whole input is returned
// trimmed and Fenced is false. It never fails.
func Extract(text string) Extraction {
	open := strings.Index(text, FenceMarker)
	if open < 0 {
		return Extraction{Code: strings.TrimSpace(text)}
	}

	rest := text[open+len(FenceMarker):]
	header, body, multiline := strings.Cut(rest, "\n")

	// Single-line form: ```code``` or ```python code```
	if end := strings.Index(header, FenceMarker); end >= 0 {
		return singleLine(header[:end])
	}

	block := Extraction{
		Language: languageHint(header),
		Fenced:   true,
	}
	if !multiline {
		return block
	}

	// An unterminated block runs to the end of the input
	if end := strings.Index(body, FenceMarker); end >= 0 {
		body = body[:end]
	}
	block.Code = strings.TrimSpace(body)
	return block
}

// singleLine splits a leading python tag off a one-line block
func singleLine(inner string) Extraction {
	inner = strings.TrimSpace(inner)
	if word, code, ok := strings.Cut(inner, " "); ok && isPythonTag(word) {
		return Extraction{
			Code:     strings.TrimSpace(code),
			Language: strings.ToLower(word),
			Fenced:   true,
		}
	}
	return Extraction{Code: inner, Fenced: true}
}

func isPythonTag(word string) bool {
	switch strings.ToLower(word) {
	case "python", "python3", "py", "py3":
		return true
	}
	return false
}

// Code is a shorthand for Extract(text).Code
func Code(text string) string {
	return Extract(text).Code
}

// SceneName returns the first class deriving from a Scene type in code,
// or fallback if there is none
func SceneName(code, fallback string) string {
	matches := sceneClassRegex.FindStringSubmatch(code)
	if len(matches) >= 2 {
		return matches[1]
	}
	return fallback
}

// ValidIdentifier reports whether name can be passed to the renderer as a scene name
func ValidIdentifier(name string) bool {
	return identRegex.MatchString(name)
}

// languageHint takes the first word after the opening marker
func languageHint(rest string) string {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
