package domain

import (
	"regexp"
	"strings"
)

// Language is the response language requested by the client.
type Language string

// Supported response languages.
const (
	English Language = "English"
	Hindi   Language = "Hindi"
	Marathi Language = "Marathi"
)

// Marker returns the inline marker clients embed in the message, e.g. "[Language: Hindi]".
func (l Language) Marker() string {
	return "[Language: " + string(l) + "]"
}

// DetectLanguage picks the response language from inline markers. A Hindi
// marker anywhere wins, then Marathi; everything else is English.
func DetectLanguage(raw string) Language {
	switch {
	case strings.Contains(raw, Hindi.Marker()):
		return Hindi
	case strings.Contains(raw, Marathi.Marker()):
		return Marathi
	default:
		return English
	}
}

var markerRegex = regexp.MustCompile(`\[Language:\s*[A-Za-z]+\]`)

// StripLanguageMarker removes every language marker and trims the result.
func StripLanguageMarker(raw string) string {
	return strings.TrimSpace(markerRegex.ReplaceAllString(raw, ""))
}
