package ocr

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/imaging"
)

const TesseractEngineName = "tesseract"

// TesseractEngine shells out to the tesseract CLI in TSV mode and groups the
// recognised words into line fragments.
type TesseractEngine struct {
	cfg    common.OCRConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseractEngine(cfg common.OCRConfig, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "chi_sim+eng"
	}
	return &TesseractEngine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner replaces the command runner.
func (e *TesseractEngine) WithRunner(r Runner) *TesseractEngine {
	e.runner = r
	return e
}

func (e *TesseractEngine) Name() string { return TesseractEngineName }

func (e *TesseractEngine) Detect(ctx context.Context, img *imaging.Image) (entity.OCRResult, error) {
	start := time.Now()

	f, err := os.CreateTemp("", "invoice-ocr-*."+img.Format)
	if err != nil {
		return entity.OCRResult{}, common.ConfigurationFailure("create temp image", err)
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.Write(img.Data); err != nil {
		f.Close()
		return entity.OCRResult{}, common.ConfigurationFailure("write temp image", err)
	}
	if err := f.Close(); err != nil {
		return entity.OCRResult{}, common.ConfigurationFailure("close temp image", err)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.args(path)...)
	if err != nil {
		if ctx.Err() != nil {
			return entity.OCRResult{}, common.ExtractionFailure("ocr timed out", ctx.Err())
		}
		return entity.OCRResult{}, common.ExtractionFailure("tesseract failed: "+truncate(string(errb), 512), err)
	}

	frags := ParseTSV(out)
	dur := time.Since(start)
	e.logger.Debug("tesseract.ok", "fragments", len(frags), "duration_ms", dur.Milliseconds())
	return entity.OCRResult{
		Fragments:      frags,
		Engine:         TesseractEngineName,
		ImageWidth:     img.Width,
		ImageHeight:    img.Height,
		ProcessingTime: dur.Seconds(),
	}, nil
}

// tesseract <file> stdout -l <lang> [--tessdata-dir d] [--psm n] [--oem n] tsv
func (e *TesseractEngine) args(path string) []string {
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	return append(args, "tsv")
}
