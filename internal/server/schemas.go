package server

import (
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-ocr/internal/utils"
)

// Values are matched case-insensitively by constants.ParseOutputFormat.
func outputFormatSchema() map[string]any {
	return map[string]any{"type": "string", "maxLength": 16}
}

func sourceProperties() map[string]any {
	return map[string]any{
		"image_data": map[string]any{"type": "string"},
		"image_url":  map[string]any{"type": "string"},
	}
}

func recognizeRequestSchema() map[string]any {
	props := sourceProperties()
	props["output_format"] = outputFormatSchema()
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
}

func detectRequestSchema() map[string]any {
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": sourceProperties(),
	}
}

func batchRequestSchema() map[string]any {
	item := sourceProperties()
	item["id"] = map[string]any{"type": "string"}
	return map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": []string{"items"},
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":       "object",
					"required":   []string{"id"},
					"properties": item,
				},
			},
			"max_concurrency": map[string]any{"type": "integer", "minimum": 0},
			"output_format":   outputFormatSchema(),
			"async":           map[string]any{"type": "boolean"},
		},
	}
}

func batchIDRequestSchema() map[string]any {
	return map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": []string{"batch_id"},
		"properties": map[string]any{
			"batch_id": map[string]any{"type": "string", "minLength": 1},
		},
	}
}

func listRequestSchema() map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"limit": map[string]any{"type": "integer", "minimum": 0},
		},
	}
}

type requestSchemas struct {
	recognize *jsonschema.Schema
	detect    *jsonschema.Schema
	batch     *jsonschema.Schema
	batchID   *jsonschema.Schema
	list      *jsonschema.Schema
}

func compileRequestSchemas() (*requestSchemas, error) {
	var (
		out requestSchemas
		err error
	)
	compile := func(dst **jsonschema.Schema, name string, m map[string]any) {
		if err != nil {
			return
		}
		*dst, err = utils.CompileSchema(name, m)
	}
	compile(&out.recognize, "recognize_request.json", recognizeRequestSchema())
	compile(&out.detect, "detect_request.json", detectRequestSchema())
	compile(&out.batch, "batch_request.json", batchRequestSchema())
	compile(&out.batchID, "batch_id_request.json", batchIDRequestSchema())
	compile(&out.list, "list_request.json", listRequestSchema())
	if err != nil {
		return nil, err
	}
	return &out, nil
}
