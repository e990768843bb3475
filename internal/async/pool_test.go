package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/imaging"
	"github.com/joseph-ayodele/invoice-ocr/internal/ocr"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	var running, peak int32
	engine := ocr.EngineFunc(func(ctx context.Context, img *imaging.Image) (entity.OCRResult, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return entity.OCRResult{Engine: img.Hash}, nil
	})
	p := NewPool(engine, nil, WithWorkers(2), WithQueueSize(1))
	defer p.Shutdown(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hash := string(rune('a' + i))
			res, err := p.Detect(context.Background(), &imaging.Image{Hash: hash})
			if err != nil || res.Engine != hash {
				t.Errorf("job %d: %v %+v", i, err, res)
			}
		}(i)
	}
	wg.Wait()
	if peak > 2 {
		t.Fatalf("peak concurrency %d exceeds 2 workers", peak)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	engine := ocr.EngineFunc(func(context.Context, *imaging.Image) (entity.OCRResult, error) {
		panic("boom")
	})
	p := NewPool(engine, nil, WithWorkers(1))
	defer p.Shutdown(context.Background())

	_, err := p.Detect(context.Background(), &imaging.Image{})
	if common.CodeOf(err) != common.CodeExtractionFailure {
		t.Fatalf("code = %q (%v)", common.CodeOf(err), err)
	}
	// the worker survives
	_, err = p.Detect(context.Background(), &imaging.Image{})
	if common.CodeOf(err) != common.CodeExtractionFailure {
		t.Fatalf("second call: %v", err)
	}
}

func TestPoolTimeout(t *testing.T) {
	engine := ocr.EngineFunc(func(ctx context.Context, _ *imaging.Image) (entity.OCRResult, error) {
		<-ctx.Done()
		return entity.OCRResult{}, ctx.Err()
	})
	p := NewPool(engine, nil, WithWorkers(1), WithProcessTimeout(20*time.Millisecond))
	defer p.Shutdown(context.Background())

	if _, err := p.Detect(context.Background(), &imaging.Image{}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestPoolShutdown(t *testing.T) {
	engine := ocr.EngineFunc(func(context.Context, *imaging.Image) (entity.OCRResult, error) {
		return entity.OCRResult{}, nil
	})
	p := NewPool(engine, nil)
	p.Shutdown(context.Background())
	p.Shutdown(context.Background())

	if _, err := p.Detect(context.Background(), &imaging.Image{}); common.CodeOf(err) != common.CodeProcessing {
		t.Fatalf("expected closed pool error, got %v", err)
	}
}
