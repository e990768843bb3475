package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/async"
	"github.com/joseph-ayodele/invoice-ocr/internal/batch"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/imaging"
	"github.com/joseph-ayodele/invoice-ocr/internal/ingest"
	"github.com/joseph-ayodele/invoice-ocr/internal/invoice"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/pipeline"
	repo "github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags
	var (
		inmem       = flag.Bool("inmem", false, "use in-memory SQLite database for the batch archive")
		dir         = flag.String("dir", "", "directory to read invoice images from (required)")
		out         = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		format      = flag.String("format", string(constants.FormatStandard), "output format: standard, detailed or raw")
		concurrency = flag.Int("concurrency", 0, "max concurrent tasks (0 = configured PARALLEL_WORKERS)")
		skipHidden  = flag.Bool("skip-hidden", true, "skip hidden files and directories")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	outputFormat, err := constants.ParseOutputFormat(*format)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "invoices.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *inmem {
		cfg.Database.DSN = "file:invoice-batch?mode=memory&_pragma=foreign_keys(1)"
	}

	db, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)
	if err := repo.Migrate(ctx, db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	archive := repo.NewBatchRepository(db, logger)

	// Ingest directory
	items, results, stats, err := ingest.NewFSIngestor(cfg.OCR.MaxImageBytes, logger).DirectoryItems(ctx, *dir, *skipHidden)
	if err != nil {
		logger.Error("failed to ingest directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	for _, r := range results {
		if r.Err != "" {
			logger.Warn("file skipped", "path", r.SourcePath, "error", r.Err)
		}
	}
	if len(items) == 0 {
		logger.Error("no invoice images found", "dir", *dir, "scanned", stats.Scanned)
		os.Exit(1)
	}
	// a local run takes the whole directory as one batch
	if len(items) > cfg.Batch.MaxBatchSize {
		logger.Info("raising batch size limit for directory run", "items", len(items), "limit", cfg.Batch.MaxBatchSize)
		cfg.Batch.MaxBatchSize = len(items)
	}

	// OCR
	pool := async.NewPool(ocr.NewTesseractEngine(cfg.OCR, logger), logger,
		async.WithWorkers(cfg.OCR.Workers),
		async.WithQueueSize(cfg.OCR.QueueSize),
		async.WithProcessTimeout(cfg.OCR.Timeout),
	)
	defer pool.Shutdown(context.Background())
	engine := ocr.NewCached(pool, ocr.NewMemoryCache(), cfg.Cache, logger)

	asm, err := invoice.NewAssembler(nil, logger)
	if err != nil {
		logger.Error("failed to build assembler", "error", err)
		os.Exit(1)
	}
	processor := pipeline.NewProcessor(logger, imaging.NewAcquirer(cfg.OCR, logger), engine, asm)
	scheduler := batch.NewScheduler(cfg.Batch, processor, logger, batch.WithArchiver(archive))

	res, err := scheduler.Process(ctx, entity.BatchRequest{
		Items:          items,
		MaxConcurrency: *concurrency,
		OutputFormat:   outputFormat,
	})
	if err != nil {
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}

	content, err := export.NewService(archive, logger).BatchXLSX(res)
	if err != nil {
		logger.Error("failed to render workbook", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, content, 0o644); err != nil {
		logger.Error("failed to write workbook", "path", *out, "error", err)
		os.Exit(1)
	}

	st := res.Statistics
	logger.Info("batch complete",
		"batch_id", res.BatchID,
		"total", st.Total,
		"successful", st.Successful,
		"failed", st.Failed,
		"success_rate", st.SuccessRate,
		"throughput", st.Throughput,
		"out", *out,
	)
}
