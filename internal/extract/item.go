package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// Item turns one item-table fragment into a line item. Fragments shorter than
// three characters are noise.
func Item(text string) (entity.Item, bool) {
	name := strings.TrimSpace(text)
	if utf8.RuneCountInString(name) < 3 {
		return entity.Item{}, false
	}
	item := entity.Item{Name: &name}

	tokens := amountTokens(text)
	var decimals []string
	for _, tok := range tokens {
		if strings.Contains(tok, ".") {
			decimals = append(decimals, tok)
		}
	}
	switch {
	case len(decimals) > 0:
		item.Amount = ptr(decimals[0])
	case len(tokens) > 0:
		item.Amount = ptr(tokens[0])
	}
	if rate, ok := TaxRate(text); ok {
		item.TaxRate = &rate
		if len(decimals) > 1 {
			item.TaxAmount = ptr(decimals[len(decimals)-1])
		}
	}
	return item, true
}

func ptr(s string) *string { return &s }
