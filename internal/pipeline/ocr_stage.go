package pipeline

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// detect acquires src, then runs OCR on it. The acquirer owns source
// validation so an inline payload is decoded once.
func (p *Processor) detect(ctx context.Context, src entity.ImageSource) (entity.OCRResult, error) {
	img, err := p.Acquirer.Acquire(ctx, src)
	if err != nil {
		p.Logger.Error("processor.acquire.failed", "error", err)
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			return entity.OCRResult{}, err
		}
		return entity.OCRResult{}, common.AcquisitionFailure("acquire image", err)
	}

	res, err := p.OCR.Detect(ctx, img)
	if err != nil {
		p.Logger.Error("processor.ocr.failed", "hash", img.Hash, "error", err)
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			return entity.OCRResult{}, err
		}
		return entity.OCRResult{}, common.ExtractionFailure("ocr failed", err)
	}
	if res.ImageWidth == 0 {
		res.ImageWidth, res.ImageHeight = img.Width, img.Height
	}
	p.Logger.Debug("processor.ocr.ok", "hash", img.Hash, "engine", res.Engine, "fragments", len(res.Fragments))
	return res, nil
}
