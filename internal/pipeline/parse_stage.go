package pipeline

import (
	"fmt"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

func (p *Processor) assemble(res entity.OCRResult, format constants.OutputFormat) (*entity.Recognition, error) {
	f, err := constants.ParseOutputFormat(string(format))
	if err != nil {
		return nil, invalidFormat(format)
	}
	rec, err := p.Assembler.Assemble(res, f)
	if err != nil {
		p.Logger.Error("processor.assemble.failed", "format", string(f), "error", err)
		return nil, err
	}
	return rec, nil
}

func invalidFormat(format constants.OutputFormat) error {
	return common.InvalidInput(fmt.Sprintf("unsupported output_format %q (want standard, detailed or raw)", format))
}
