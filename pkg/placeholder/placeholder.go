// Package placeholder finds and replaces the batch placeholder in pipeline
// document text. A placeholder named x is written either {{x}} or ${x}; both
// forms are always treated the same.
package placeholder

import "strings"

// Forms returns the two literal spellings of the placeholder name.
func Forms(name string) (braces, dollar string) {
	return "{{" + name + "}}", "${" + name + "}"
}

// Contains reports whether text holds either form of the placeholder. An
// empty name never matches.
func Contains(text, name string) bool {
	if name == "" {
		return false
	}
	braces, dollar := Forms(name)
	return strings.Contains(text, braces) || strings.Contains(text, dollar)
}

// Substitute replaces every occurrence of both forms with value. It is a
// plain text replacement; the document is not re-parsed.
func Substitute(text, name, value string) string {
	if name == "" {
		return text
	}
	braces, dollar := Forms(name)
	text = strings.ReplaceAll(text, braces, value)
	return strings.ReplaceAll(text, dollar, value)
}

// Lines splits raw batch input into values: one per line, trimmed, blank
// lines dropped.
func Lines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if v := strings.TrimSpace(line); v != "" {
			out = append(out, v)
		}
	}
	return out
}
