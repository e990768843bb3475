package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

var _ Ingestor = (*FSIngestor)(nil)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	MaxBytes int64 // 0 = no limit
	logger   *slog.Logger
}

func NewFSIngestor(maxBytes int64, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{MaxBytes: maxBytes, logger: logger}
}

// IngestPath reads path into an inline batch item whose id is path relative
// to root (slash separated).
func (i *FSIngestor) IngestPath(_ context.Context, root, path string) (entity.BatchItem, IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	ext := constants.NormalizeExt(filepath.Ext(path))
	if ext == "" || !AllowedExt(ext) {
		i.logger.Warn("unsupported or missing extension", "path", path, "ext", ext)
		return entity.BatchItem{}, out, fmt.Errorf("unsupported or missing extension %q", ext)
	}
	out.FileExt = ext

	f, err := os.Open(path)
	if err != nil {
		i.logger.Error("open error", "path", path, "error", err)
		return entity.BatchItem{}, out, err
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.logger.Warn("close file error", "path", path, "error", err)
		}
	}(f)

	var r io.Reader = f
	if i.MaxBytes > 0 {
		r = io.LimitReader(f, i.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		i.logger.Error("read error", "path", path, "error", err)
		return entity.BatchItem{}, out, err
	}
	if i.MaxBytes > 0 && int64(len(data)) > i.MaxBytes {
		return entity.BatchItem{}, out, fmt.Errorf("file exceeds %d bytes", i.MaxBytes)
	}

	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])
	out.Bytes = int64(len(data))

	id, err := filepath.Rel(root, path)
	if err != nil {
		id = filepath.Base(path)
	}
	out.ItemID = filepath.ToSlash(id)

	item := entity.BatchItem{
		ID:          out.ItemID,
		ImageSource: entity.ImageSource{ImageData: base64.StdEncoding.EncodeToString(data)},
	}
	return item, out, nil
}

// DirectoryItems walks root, skips hidden entries if requested, and reads
// every supported image. Files with identical content become one item.
func (i *FSIngestor) DirectoryItems(
	ctx context.Context,
	root string,
	skipHidden bool,
) ([]entity.BatchItem, []IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	var (
		items   []entity.BatchItem
		results []IngestionResult
		stats   DirStats
	)
	seen := map[string]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		item, r, err := i.IngestPath(ctx, root, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		if first, dup := seen[r.HashHex]; dup {
			r.Deduplicated = true
			results = append(results, r)
			stats.Deduplicated++
			i.logger.Debug("duplicate image skipped", "path", path, "same_as", first)
			return nil
		}
		seen[r.HashHex] = r.ItemID

		items = append(items, item)
		results = append(results, r)
		stats.Succeeded++
		return nil
	})

	if err != nil {
		return items, results, stats, fmt.Errorf("walk: %w", err)
	}
	i.logger.Info("directory ingested",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"items", len(items),
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return items, results, stats, nil
}
