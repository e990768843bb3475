package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

var (
	reTaxID18     = regexp.MustCompile(`(?:^|[^0-9A-Za-z])([0-9A-Z]{18})(?:[^0-9A-Za-z]|$)`)
	reTaxID15     = regexp.MustCompile(`(?:^|[^0-9A-Za-z])([0-9A-Z]{15})(?:[^0-9A-Za-z]|$)`)
	rePhone       = regexp.MustCompile(`(?:^|[^0-9])(1[3-9][0-9]{9}|0[0-9]{2,3}-?[0-9]{7,8}|[0-9]{3,4}-[0-9]{7,8})(?:[^0-9]|$)`)
	reBankAccount = regexp.MustCompile(`(?:^|[^0-9])([0-9]{16,21})(?:[^0-9]|$)`)
)

// TaxID returns an 18-character unified social credit code, or failing that a
// 15-character legacy taxpayer number. Only the shape is checked.
func TaxID(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{reTaxID18, reTaxID15} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if strings.ContainsAny(m[1], "0123456789") {
				return m[1], true
			}
		}
	}
	return "", false
}

// Phone returns the first mobile or landline number.
func Phone(text string) (string, bool) {
	return submatch(rePhone, text)
}

// BankAccount returns the first standalone run of 16-21 digits, looking
// after the account label first so an all-digit tax id is not mistaken for it.
func BankAccount(text string) (string, bool) {
	if i := strings.Index(text, "账号"); i >= 0 {
		if v, ok := submatch(reBankAccount, text[i:]); ok {
			return v, true
		}
	}
	return submatch(reBankAccount, text)
}

// Address returns the first whitespace-delimited token longer than five
// characters that contains an address glyph, trying glyphs in table order.
// Tokens that name a company are skipped.
func Address(text string) (string, bool) {
	parts := strings.Fields(text)
	for _, marker := range constants.AddressMarkers {
		if !strings.Contains(text, marker) {
			continue
		}
		for _, part := range parts {
			part = afterLabel(part)
			if containsAny(part, constants.CompanyMarkers) {
				continue
			}
			if strings.Contains(part, marker) && utf8.RuneCountInString(part) > 5 {
				return part, true
			}
		}
	}
	return "", false
}

// CompanyName looks for a company name after one of the anchors (or after a
// "名称" label inside the section).
func CompanyName(texts []string, anchors []string) (string, bool) {
	for _, text := range texts {
		for _, kw := range anchors {
			idx := strings.Index(text, kw)
			if idx < 0 {
				continue
			}
			if name, ok := companyAfter(text[idx+len(kw):]); ok {
				return name, true
			}
		}
	}
	for _, text := range texts {
		if idx := strings.Index(text, "名称"); idx >= 0 {
			if name, ok := companyAfter(text[idx:]); ok {
				return name, true
			}
		}
	}
	return "", false
}

func companyAfter(rest string) (string, bool) {
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, "名称")
	rest = strings.TrimLeftFunc(rest, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(":：（）()", r)
	})
	if utf8.RuneCountInString(rest) <= 2 || !containsAny(rest, constants.CompanyMarkers) {
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

// afterLabel drops a leading "label:" from an OCR token.
func afterLabel(s string) string {
	if i := strings.LastIndexAny(s, ":："); i >= 0 {
		_, size := utf8.DecodeRuneInString(s[i:])
		return s[i+size:]
	}
	return s
}
