package entity

import (
	"bytes"
	"encoding/json"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

// Invoice is the structured record assembled from OCR fragments.
// Optional leaves are nil when the extractor found nothing; they marshal as null.
type Invoice struct {
	InvoiceType  InvoiceTypeInfo `json:"invoice_type"`
	BasicInfo    BasicInfo       `json:"basic_info"`
	SellerInfo   PartyInfo       `json:"seller_info"`
	BuyerInfo    PartyInfo       `json:"buyer_info"`
	Items        []Item          `json:"items"`
	Verification Verification    `json:"verification"`
	Meta         Meta            `json:"meta"`

	RawOCR  *OCRResult      `json:"raw_ocr_result,omitempty"`
	Details *ParsingDetails `json:"parsing_details,omitempty"`
}

type InvoiceTypeInfo struct {
	Code       *string               `json:"code"`
	Name       string                `json:"name"`
	Confidence float64               `json:"confidence"`
	RawType    constants.InvoiceType `json:"raw_type"`
}

type BasicInfo struct {
	InvoiceNumber    *string `json:"invoice_number"`
	InvoiceDate      *string `json:"invoice_date"`
	TotalAmount      *string `json:"total_amount"`
	TaxAmount        *string `json:"tax_amount"`
	AmountWithoutTax *string `json:"amount_without_tax"`
}

type PartyInfo struct {
	Name        *string `json:"name"`
	TaxID       *string `json:"tax_id"`
	Address     *string `json:"address"`
	Phone       *string `json:"phone"`
	BankAccount *string `json:"bank_account"`
}

type Item struct {
	Name          *string `json:"name"`
	Specification *string `json:"specification"`
	Unit          *string `json:"unit"`
	Quantity      *string `json:"quantity"`
	UnitPrice     *string `json:"unit_price"`
	Amount        *string `json:"amount"`
	TaxRate       *string `json:"tax_rate"`
	TaxAmount     *string `json:"tax_amount"`
}

type Verification struct {
	CheckCode     *string `json:"check_code"`
	MachineNumber *string `json:"machine_number"`
	IsValid       bool    `json:"is_valid"`
}

type Meta struct {
	ProcessingTime  float64 `json:"processing_time"`
	ModelVersion    string  `json:"model_version"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// ParsingDetails is attached by the detailed output format.
type ParsingDetails struct {
	TotalTextRegions int              `json:"total_text_regions"`
	NonEmptyRegions  int              `json:"non_empty_regions"`
	DetectedPatterns DetectedPatterns `json:"detected_patterns"`
	Sections         SectionFlags     `json:"sections"`
}

type DetectedPatterns struct {
	HasInvoiceNumber bool `json:"has_invoice_number"`
	HasSellerInfo    bool `json:"has_seller_info"`
	HasBuyerInfo     bool `json:"has_buyer_info"`
	HasAmountInfo    bool `json:"has_amount_info"`
}

type SectionFlags struct {
	Seller bool `json:"seller"`
	Buyer  bool `json:"buyer"`
	Items  bool `json:"items"`
}

// Recognition is the result of a single-item request: an assembled invoice,
// or for the raw format the OCR output itself.
type Recognition struct {
	Invoice *Invoice
	Raw     *OCRResult
}

func (r Recognition) MarshalJSON() ([]byte, error) {
	if r.Invoice == nil && r.Raw != nil {
		return json.Marshal(r.Raw)
	}
	return json.Marshal(r.Invoice)
}

func (r *Recognition) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*r = Recognition{}
		return nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if _, isInvoice := probe["basic_info"]; !isInvoice {
		if _, isRaw := probe["fragments"]; isRaw {
			var raw OCRResult
			if err := json.Unmarshal(b, &raw); err != nil {
				return err
			}
			*r = Recognition{Raw: &raw}
			return nil
		}
	}
	var inv Invoice
	if err := json.Unmarshal(b, &inv); err != nil {
		return err
	}
	*r = Recognition{Invoice: &inv}
	return nil
}
