package invoice

import "github.com/joseph-ayodele/invoice-ocr/internal/utils"

const (
	patternInvoiceNumber = `^[0-9]{6,12}$`
	patternDate          = `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`
	patternAmount        = `^[0-9]+(\.[0-9]{1,2})?$`
	patternTaxID         = `^[0-9A-Z]{15}([0-9A-Z]{3})?$`
	patternDigits        = `^[0-9]+$`
)

// BuildInvoiceJSONSchema describes a well-formed assembled record: every leaf
// is either a correctly shaped value or null.
func BuildInvoiceJSONSchema() map[string]any {
	party := map[string]any{
		"type":     "object",
		"required": []string{"name", "tax_id", "address", "phone", "bank_account"},
		"properties": map[string]any{
			"name":         utils.NullableString(""),
			"tax_id":       utils.NullableString(patternTaxID),
			"address":      utils.NullableString(""),
			"phone":        utils.NullableString(""),
			"bank_account": utils.NullableString(patternDigits),
		},
	}
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":          utils.NullableString(""),
			"specification": utils.NullableString(""),
			"unit":          utils.NullableString(""),
			"quantity":      utils.NullableString(""),
			"unit_price":    utils.NullableString(patternAmount),
			"amount":        utils.NullableString(patternAmount),
			"tax_rate":      utils.NullableString(""),
			"tax_amount":    utils.NullableString(patternAmount),
		},
	}
	return map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": []string{"invoice_type", "basic_info", "seller_info", "buyer_info", "items", "verification", "meta"},
		"properties": map[string]any{
			"invoice_type": map[string]any{
				"type":     "object",
				"required": []string{"name", "confidence", "raw_type"},
				"properties": map[string]any{
					"code":       utils.NullableString(""),
					"name":       map[string]any{"type": "string", "minLength": 1},
					"confidence": utils.UnitInterval(),
					"raw_type":   map[string]any{"type": "string", "minLength": 1},
				},
			},
			"basic_info": map[string]any{
				"type":     "object",
				"required": []string{"invoice_number", "invoice_date", "total_amount", "tax_amount", "amount_without_tax"},
				"properties": map[string]any{
					"invoice_number":     utils.NullableString(patternInvoiceNumber),
					"invoice_date":       utils.NullableString(patternDate),
					"total_amount":       utils.NullableString(patternAmount),
					"tax_amount":         utils.NullableString(patternAmount),
					"amount_without_tax": utils.NullableString(patternAmount),
				},
			},
			"seller_info": party,
			"buyer_info":  party,
			"items":       map[string]any{"type": "array", "items": item},
			"verification": map[string]any{
				"type":     "object",
				"required": []string{"check_code", "machine_number", "is_valid"},
				"properties": map[string]any{
					"check_code":     utils.NullableString(patternDigits),
					"machine_number": utils.NullableString(patternDigits),
					"is_valid":       map[string]any{"type": "boolean"},
				},
			},
			"meta": map[string]any{
				"type":     "object",
				"required": []string{"processing_time", "model_version", "confidence_score"},
				"properties": map[string]any{
					"processing_time":  map[string]any{"type": "number", "minimum": 0},
					"model_version":    map[string]any{"type": "string"},
					"confidence_score": utils.UnitInterval(),
				},
			},
		},
	}
}
