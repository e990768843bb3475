// Package ingest turns image files on disk into batch items.
package ingest

import (
	"context"

	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	ItemID       string
	Deduplicated bool
	HashHex      string
	FileExt      string
	Bytes        int64
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the batch CLI depends on.
type Ingestor interface {
	// IngestPath reads a single image file.
	IngestPath(ctx context.Context, root, path string) (entity.BatchItem, IngestionResult, error)
	// DirectoryItems reads all matching files under root, one item per distinct image.
	DirectoryItems(ctx context.Context, root string, skipHidden bool) ([]entity.BatchItem, []IngestionResult, DirStats, error)
}
