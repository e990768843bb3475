// Package invoice assembles classified, segmented and extracted OCR text into
// a structured invoice record.
package invoice

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/classify"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/extract"
	"github.com/joseph-ayodele/invoice-ocr/internal/segment"
	"github.com/joseph-ayodele/invoice-ocr/internal/utils"
)

const ModelVersion = "v1.0.0"

// Stage is a step of the linear assembly state machine.
type Stage int

const (
	StageReceived Stage = iota
	StageClassified
	StageSegmented
	StageExtracted
	StageAssembled
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageClassified:
		return "classified"
	case StageSegmented:
		return "segmented"
	case StageExtracted:
		return "extracted"
	case StageAssembled:
		return "assembled"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

type Assembler struct {
	classifier *classify.Classifier
	schema     *jsonschema.Schema
	logger     *slog.Logger
}

func NewAssembler(classifier *classify.Classifier, logger *slog.Logger) (*Assembler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = classify.NewClassifier(logger)
	}
	schema, err := utils.CompileSchema("invoice.json", BuildInvoiceJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("invoice schema: %w", err)
	}
	return &Assembler{classifier: classifier, schema: schema, logger: logger}, nil
}

// Classifier exposes the classifier used for the invoice_type block.
func (a *Assembler) Classifier() *classify.Classifier { return a.classifier }

// Assemble runs Received -> Classified -> Segmented -> Extracted -> Assembled
// over ocr. The raw format returns ocr untouched. Any failure, including a
// panic inside an extractor, aborts the item with an EXTRACTION_FAILURE.
func (a *Assembler) Assemble(ocr entity.OCRResult, format constants.OutputFormat) (rec *entity.Recognition, err error) {
	stage := StageReceived
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("assemble.panic", "stage", stage.String(), "panic", r)
			rec, err = nil, common.ExtractionFailure(fmt.Sprintf("assembly aborted at %s stage", stage), fmt.Errorf("%v", r))
		}
	}()

	switch format {
	case constants.FormatRaw:
		raw := cloneOCR(ocr)
		return &entity.Recognition{Raw: &raw}, nil
	case constants.FormatStandard, constants.FormatDetailed, "":
	default:
		return nil, common.InvalidInput(fmt.Sprintf("unsupported output format %q", format))
	}

	texts := ocr.Texts()

	typeScore := a.classifier.ClassifyTexts(texts)
	stage = StageClassified

	segs := segment.Split(texts)
	stage = StageSegmented

	inv := entity.Invoice{
		InvoiceType:  typeInfo(typeScore),
		BasicInfo:    basicInfo(texts),
		SellerInfo:   partyInfo(segs.Seller, constants.SellerAnchors),
		BuyerInfo:    partyInfo(segs.Buyer, constants.BuyerAnchors),
		Items:        items(segs.Items),
		Verification: verification(texts),
	}
	inv.Verification.IsValid = inv.BasicInfo.InvoiceNumber != nil &&
		inv.BasicInfo.InvoiceDate != nil &&
		inv.BasicInfo.TotalAmount != nil
	stage = StageExtracted

	inv.Meta = entity.Meta{
		ProcessingTime:  utils.Round(ocr.ProcessingTime, 3),
		ModelVersion:    ModelVersion,
		ConfidenceScore: Confidence(typeScore.Confidence, texts),
	}
	if format == constants.FormatDetailed {
		raw := cloneOCR(ocr)
		inv.RawOCR = &raw
		inv.Details = parsingDetails(texts, segs)
	}

	if err := a.ValidateRecord(&inv); err != nil {
		return nil, common.ExtractionFailure("assembled record is malformed", err)
	}
	stage = StageAssembled

	a.logger.Debug("assemble.ok",
		"type", typeScore.Type,
		"fragments", len(texts),
		"confidence", inv.Meta.ConfidenceScore,
		"stage", stage.String(),
	)
	return &entity.Recognition{Invoice: &inv}, nil
}

// ValidateRecord checks inv against the record schema.
func (a *Assembler) ValidateRecord(inv *entity.Invoice) error {
	b, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	return utils.ValidateJSON(a.schema, b)
}

// Confidence blends type confidence with a step function of text density:
// 0.6*type + 0.4*density, rounded to three places and clamped to [0,1].
func Confidence(typeConfidence float64, texts []string) float64 {
	n := 0
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			n++
		}
	}
	var density float64
	switch {
	case n > 20:
		density = 0.9
	case n > 10:
		density = 0.7
	case n > 5:
		density = 0.5
	default:
		density = 0.3
	}
	return utils.Clamp01(utils.Round(0.6*utils.Clamp01(typeConfidence)+0.4*density, 3))
}

func typeInfo(s entity.TypeScore) entity.InvoiceTypeInfo {
	info := entity.InvoiceTypeInfo{
		Name:       s.Type.DisplayName(),
		Confidence: utils.Clamp01(s.Confidence),
		RawType:    s.Type,
	}
	if code := s.Type.Code(); code != "" {
		info.Code = &code
	}
	return info
}

func basicInfo(texts []string) entity.BasicInfo {
	amounts := extract.Amounts(texts)
	return entity.BasicInfo{
		InvoiceNumber:    opt(extract.InvoiceNumber(texts)),
		InvoiceDate:      opt(extract.Date(extract.Join(texts))),
		TotalAmount:      nonEmpty(amounts.Total),
		TaxAmount:        nonEmpty(amounts.Tax),
		AmountWithoutTax: nonEmpty(amounts.PreTax),
	}
}

func partyInfo(section []string, anchors []string) entity.PartyInfo {
	if len(section) == 0 {
		return entity.PartyInfo{}
	}
	joined := extract.Join(section)
	return entity.PartyInfo{
		Name:        opt(extract.CompanyName(section, anchors)),
		TaxID:       opt(extract.TaxID(joined)),
		Address:     opt(extract.Address(joined)),
		Phone:       opt(extract.Phone(joined)),
		BankAccount: opt(extract.BankAccount(joined)),
	}
}

func items(section []string) []entity.Item {
	out := []entity.Item{}
	for _, t := range section {
		if segment.IsItemHeader(t) {
			continue
		}
		if it, ok := extract.Item(t); ok {
			out = append(out, it)
		}
	}
	return out
}

func verification(texts []string) entity.Verification {
	joined := extract.Join(texts)
	return entity.Verification{
		CheckCode:     opt(extract.CheckCode(joined)),
		MachineNumber: opt(extract.MachineNumber(joined)),
	}
}

func parsingDetails(texts []string, segs segment.Segments) *entity.ParsingDetails {
	d := &entity.ParsingDetails{
		TotalTextRegions: len(texts),
		Sections: entity.SectionFlags{
			Seller: len(segs.Seller) > 0,
			Buyer:  len(segs.Buyer) > 0,
			Items:  len(segs.Items) > 0,
		},
	}
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			d.NonEmptyRegions++
		}
		if strings.Contains(t, constants.MarkerInvoiceNumber) {
			d.DetectedPatterns.HasInvoiceNumber = true
		}
		if strings.Contains(t, constants.MarkerSeller) {
			d.DetectedPatterns.HasSellerInfo = true
		}
		if strings.Contains(t, constants.MarkerBuyer) {
			d.DetectedPatterns.HasBuyerInfo = true
		}
		for _, m := range constants.AmountMarkers {
			if strings.Contains(t, m) {
				d.DetectedPatterns.HasAmountInfo = true
			}
		}
	}
	return d
}

func cloneOCR(r entity.OCRResult) entity.OCRResult {
	out := r
	out.Fragments = make([]entity.Fragment, len(r.Fragments))
	for i, f := range r.Fragments {
		f.Region = append(entity.Region(nil), f.Region...)
		out.Fragments[i] = f
	}
	return out
}

func opt(v string, ok bool) *string {
	if !ok {
		return nil
	}
	return &v
}

func nonEmpty(v string) *string {
	return opt(v, v != "")
}
