package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeOfAndToStatus(t *testing.T) {
	wrapped := fmt.Errorf("task t1: %w", AcquisitionFailure("download failed", errors.New("connection refused")))
	if got := CodeOf(wrapped); got != CodeAcquisitionFailure {
		t.Fatalf("CodeOf = %q", got)
	}
	if got := CodeOf(errors.New("boom")); got != CodeProcessing {
		t.Fatalf("CodeOf(plain) = %q", got)
	}
	if got := MessageOf(wrapped); got != "download failed: connection refused" {
		t.Fatalf("MessageOf = %q", got)
	}
	if got := MessageOf(InvalidInput("batch is empty")); got != "batch is empty" {
		t.Fatalf("MessageOf(sentinel cause) = %q", got)
	}

	cases := map[error]codes.Code{
		InvalidInput("x"):                codes.InvalidArgument,
		InvalidImage("x"):                codes.InvalidArgument,
		NotFound("x"):                    codes.NotFound,
		ConfigurationFailure("x", nil):   codes.Unavailable,
		ExtractionFailure("x", nil):      codes.Internal,
		errors.New("anything else"):      codes.Internal,
		status.Error(codes.Aborted, "x"): codes.Aborted,
	}
	for err, want := range cases {
		if got := status.Code(ToStatus(err)); got != want {
			t.Errorf("ToStatus(%v) = %s, want %s", err, got, want)
		}
	}
	if ToStatus(nil) != nil {
		t.Fatal("ToStatus(nil) should be nil")
	}
}

func TestValidatorCollectsErrors(t *testing.T) {
	v := NewValidator()
	v.Field("id", "", Required).
		Field("id", "abcdef", MaxLength(3)).
		Field("image_url", "ftp://example.com/a.png", ImageURL).
		Field("image_url", "https://example.com/a.png", ImageURL).
		Field("image_data", "junk", ImageData(func(string) error { return InvalidImage("bad payload") }))

	if got := len(v.Errors()); got != 4 {
		t.Fatalf("errors = %d (%s), want 4", got, v.ErrorMessage())
	}
	err := v.Error()
	if CodeOf(err) != CodeInvalidInput {
		t.Fatalf("code = %q", CodeOf(err))
	}
	if NewValidator().Error() != nil {
		t.Fatal("empty validator should not error")
	}
}

func TestCheckImageURL(t *testing.T) {
	for _, ok := range []string{"http://a.example/x.jpg", "https://a.example"} {
		if err := CheckImageURL(ok); err != nil {
			t.Errorf("%s: %v", ok, err)
		}
	}
	for _, bad := range []string{"a.example/x.jpg", "file:///etc/passwd", "https://", "::"} {
		if err := CheckImageURL(bad); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := "batch:\n  max_batch_size: 10\n  parallel_workers: 2\nocr:\n  timeout: 5s\ncache:\n  backend: memory\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("INVOICE_OCR_CONFIG", path)
	t.Setenv("PARALLEL_WORKERS", "3")
	t.Setenv("GRPC_ADDR", ":9999")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Batch.MaxBatchSize != 10 {
		t.Errorf("MaxBatchSize = %d, want 10 from yaml", cfg.Batch.MaxBatchSize)
	}
	if cfg.Batch.ParallelWorkers != 3 {
		t.Errorf("ParallelWorkers = %d, want env override 3", cfg.Batch.ParallelWorkers)
	}
	if cfg.OCR.Timeout != 5*time.Second {
		t.Errorf("OCR.Timeout = %s", cfg.OCR.Timeout)
	}
	if cfg.Server.GRPCAddr != ":9999" {
		t.Errorf("GRPCAddr = %q", cfg.Server.GRPCAddr)
	}
	if cfg.Batch.Retention != 24*time.Hour {
		t.Errorf("Retention default lost: %s", cfg.Batch.Retention)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Backend = "redis"
	if err := cfg.Validate(); CodeOf(err) != CodeConfiguration {
		t.Fatalf("redis without url: %v", err)
	}
	cfg = DefaultConfig()
	cfg.Batch.ParallelWorkers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero workers")
	}
}
