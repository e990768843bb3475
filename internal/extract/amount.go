package extract

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

var (
	reAmountToken  = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)
	reGrouped      = regexp.MustCompile(`^[0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]+)?$`)
	reDecimalShape = regexp.MustCompile(`^[0-9]+(?:\.[0-9]{1,2})?$`)
	reTaxRate      = regexp.MustCompile(`([0-9]{1,2}(?:\.[0-9]+)?)\s*%`)
)

// Amount returns the first non-negative decimal (at most two fraction digits)
// in text, with currency glyphs and thousands separators removed.
func Amount(text string) (string, bool) {
	tokens := amountTokens(text)
	if len(tokens) == 0 {
		return "", false
	}
	return tokens[0], true
}

// amountTokens lists every acceptable amount in text, in order. Negative
// numbers, percentages and badly grouped numbers are skipped whole.
func amountTokens(text string) []string {
	var out []string
	for _, loc := range reAmountToken.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && text[loc[0]-1] == '-' {
			continue
		}
		tok := text[loc[0]:loc[1]]
		end := loc[1]
		// a comma after the number is punctuation, not a group separator
		if trimmed := strings.TrimRight(tok, ","); len(trimmed) < len(tok) {
			end -= len(tok) - len(trimmed)
			tok = trimmed
		}
		if rest := strings.TrimLeft(text[end:], " "); strings.HasPrefix(rest, "%") {
			continue
		}
		if strings.Contains(tok, ",") && !reGrouped.MatchString(tok) {
			continue
		}
		v := strings.ReplaceAll(tok, ",", "")
		if reDecimalShape.MatchString(v) {
			out = append(out, v)
		}
	}
	return out
}

// AmountSet holds the keyword-gated amount buckets of one invoice.
type AmountSet struct {
	Total  string
	Tax    string
	PreTax string
}

// Amounts assigns each fragment to at most one bucket (total, then tax, then
// pre-tax, by keyword). A later fragment overwrites an earlier one in the same
// bucket, so the summary line printed last on the invoice wins.
func Amounts(texts []string) AmountSet {
	var set AmountSet
	for _, t := range texts {
		var dst *string
		switch {
		case containsAny(t, constants.TotalAmountKeywords):
			dst = &set.Total
		case containsAny(t, constants.TaxAmountKeywords):
			dst = &set.Tax
		case containsAny(t, constants.PreTaxAmountKeywords):
			dst = &set.PreTax
		default:
			continue
		}
		if v, ok := Amount(t); ok {
			*dst = v
		}
	}
	return set
}

// TaxRate returns a percentage like "13%".
func TaxRate(text string) (string, bool) {
	m, ok := submatch(reTaxRate, text)
	if !ok {
		return "", false
	}
	return m + "%", true
}
