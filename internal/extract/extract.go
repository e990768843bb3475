// Package extract holds stateless pattern matchers that pull typed values out
// of OCR text. Every extractor returns ok=false instead of an error when
// nothing well-formed is found.
package extract

import "strings"

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Join concatenates fragment texts the way field extraction scans them.
func Join(texts []string) string {
	return strings.Join(texts, " ")
}
