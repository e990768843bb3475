package entity

import "github.com/joseph-ayodele/invoice-ocr/constants"

// Classification methods reported in TypeScore.Method.
const (
	MethodKeywords      = "keywords"
	MethodNumericLayout = "numeric_pattern"
	MethodDefault       = "default"
)

// TypeScore is the classifier verdict over the joined OCR text.
type TypeScore struct {
	Type            constants.InvoiceType             `json:"type"`
	Confidence      float64                           `json:"confidence"`
	MatchedKeywords []string                          `json:"matched_keywords"`
	AllScores       map[constants.InvoiceType]float64 `json:"all_scores"`
	Method          string                            `json:"method"`
}

type TypeCandidate struct {
	Type       constants.InvoiceType `json:"type"`
	Name       string                `json:"name"`
	Code       *string               `json:"code"`
	Confidence float64               `json:"confidence"`
}

// TypeDetection answers a type-detection request.
type TypeDetection struct {
	InvoiceType      TypeCandidate   `json:"invoice_type"`
	Candidates       []TypeCandidate `json:"candidates"`
	DetectedKeywords []string        `json:"detected_keywords"`
}
