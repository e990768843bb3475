package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice-ocr/internal/async"
	"github.com/joseph-ayodele/invoice-ocr/internal/batch"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/imaging"
	"github.com/joseph-ayodele/invoice-ocr/internal/invoice"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
	"github.com/joseph-ayodele/invoice-ocr/internal/pipeline"
	repo "github.com/joseph-ayodele/invoice-ocr/internal/repository"
	svc "github.com/joseph-ayodele/invoice-ocr/internal/server"
)

func main() {
	// Setup structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database, 5*time.Second, logger)
	if err != nil {
		os.Exit(1)
	}
	defer repo.Close(db, logger)
	archive := repo.NewBatchRepository(db, logger)

	// OCR: tesseract behind a bounded worker pool, optionally cached by image hash
	pool := async.NewPool(ocr.NewTesseractEngine(cfg.OCR, logger), logger,
		async.WithWorkers(cfg.OCR.Workers),
		async.WithQueueSize(cfg.OCR.QueueSize),
		async.WithProcessTimeout(cfg.OCR.Timeout),
	)
	var engine ocr.Engine = pool
	cache, err := ocr.NewCache(ctx, cfg.Cache)
	if err != nil {
		logger.Error("failed to open ocr cache", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	if cache != nil {
		if c, ok := cache.(io.Closer); ok {
			defer func() {
				if err := c.Close(); err != nil {
					logger.Warn("closing ocr cache", "error", err)
				}
			}()
		}
		engine = ocr.NewCached(pool, cache, cfg.Cache, logger)
		logger.Info("ocr cache enabled", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL.String())
	}

	asm, err := invoice.NewAssembler(nil, logger)
	if err != nil {
		logger.Error("failed to build assembler", "error", err)
		os.Exit(1)
	}
	processor := pipeline.NewProcessor(logger, imaging.NewAcquirer(cfg.OCR, logger), engine, asm)

	scheduler := batch.NewScheduler(cfg.Batch, processor, logger, batch.WithArchiver(archive))
	sweeper, err := batch.NewSweeper(scheduler, cfg.Batch.CleanupSchedule, cfg.Batch.Retention, logger)
	if err != nil {
		logger.Error("failed to schedule cleanup", "error", err)
		os.Exit(1)
	}
	sweeper.Start()

	invoiceService, err := svc.NewInvoiceService(processor, scheduler, archive, logger)
	if err != nil {
		logger.Error("failed to build invoice service", "error", err)
		os.Exit(1)
	}

	// gRPC server
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	svc.RegisterInvoiceServiceServer(grpcServer, invoiceService)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	if cfg.Server.EnableReflection {
		reflection.Register(grpcServer)
	}

	logger.Info("invoice-ocr listening", "addr", cfg.Server.GRPCAddr, "ocr_workers", pool.Workers())
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sweeper.Stop(shutdownCtx)
	pool.Shutdown(shutdownCtx)
}
