// Package pipeline runs one image through acquisition, OCR and invoice
// assembly.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/classify"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/imaging"
	"github.com/joseph-ayodele/invoice-ocr/internal/invoice"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
)

// CandidateCount is how many type candidates DetectType reports.
const CandidateCount = 5

// Acquirer resolves an image source into bytes.
type Acquirer interface {
	Acquire(ctx context.Context, src entity.ImageSource) (*imaging.Image, error)
}

// Processor coordinates acquisition, OCR and assembly.
type Processor struct {
	Logger    *slog.Logger
	Acquirer  Acquirer
	OCR       ocr.Engine
	Assembler *invoice.Assembler
}

func NewProcessor(logger *slog.Logger, acq Acquirer, engine ocr.Engine, asm *invoice.Assembler) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Acquirer: acq, OCR: engine, Assembler: asm}
}

// Recognize turns src into an invoice record (or the raw OCR output for the
// raw format).
func (p *Processor) Recognize(ctx context.Context, src entity.ImageSource, format constants.OutputFormat) (*entity.Recognition, error) {
	start := time.Now()
	if _, err := constants.ParseOutputFormat(string(format)); err != nil {
		return nil, invalidFormat(format)
	}

	// 1) acquire + OCR
	res, err := p.detect(ctx, src)
	if err != nil {
		return nil, err
	}

	// 2) classify, segment, extract, assemble
	rec, err := p.assemble(res, format)
	if err != nil {
		return nil, err
	}
	p.Logger.Info("processor.recognize.ok",
		"format", string(format),
		"fragments", len(res.Fragments),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// DetectType classifies src without extracting fields.
func (p *Processor) DetectType(ctx context.Context, src entity.ImageSource) (*entity.TypeDetection, error) {
	res, err := p.detect(ctx, src)
	if err != nil {
		return nil, err
	}
	score := p.Assembler.Classifier().ClassifyTexts(res.Texts())
	keywords := score.MatchedKeywords
	if keywords == nil {
		keywords = []string{}
	}
	det := &entity.TypeDetection{
		InvoiceType:      classify.Candidate(score.Type, score.Confidence),
		Candidates:       classify.Candidates(score, CandidateCount),
		DetectedKeywords: keywords,
	}
	p.Logger.Info("processor.detect_type.ok", "type", score.Type, "confidence", score.Confidence, "method", score.Method)
	return det, nil
}
