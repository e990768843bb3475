// Package ocr wraps text detection engines behind a single Detect call.
package ocr

import (
	"context"

	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/imaging"
)

// Engine detects text lines in an image.
type Engine interface {
	Name() string
	Detect(ctx context.Context, img *imaging.Image) (entity.OCRResult, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, img *imaging.Image) (entity.OCRResult, error)

func (f EngineFunc) Name() string { return "func" }

func (f EngineFunc) Detect(ctx context.Context, img *imaging.Image) (entity.OCRResult, error) {
	return f(ctx, img)
}
