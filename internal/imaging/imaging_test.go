package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	r := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestAcquirer() *Acquirer {
	return NewAcquirer(common.DefaultConfig().OCR, nil)
}

func TestDecodePayload(t *testing.T) {
	data := noisyPNG(t, 48, 32)
	b64 := base64.StdEncoding.EncodeToString(data)

	for name, payload := range map[string]string{
		"plain":    b64,
		"data uri": "data:image/png;base64," + b64,
		"wrapped":  b64[:40] + "\n" + b64[40:],
	} {
		img, err := newTestAcquirer().Decode(payload)
		if err != nil {
			t.Fatalf("%s: Decode: %v", name, err)
		}
		if img.Format != "png" || img.Width != 48 || img.Height != 32 || len(img.Hash) != 64 {
			t.Errorf("%s: got %s %dx%d hash=%q", name, img.Format, img.Width, img.Height, img.Hash)
		}
	}
}

func TestValidatePayloadRejects(t *testing.T) {
	small := base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'})
	text := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("not an image "), 200))
	cases := map[string]string{
		"empty":     "",
		"alphabet":  "!!!not-base64!!!",
		"too small": small,
		"signature": text,
		"bad uri":   "data:image/png;base64",
	}
	for name, payload := range cases {
		err := ValidatePayload(payload)
		if common.CodeOf(err) != common.CodeInvalidImageFormat {
			t.Errorf("%s: code = %q (%v)", name, common.CodeOf(err), err)
		}
	}
	if err := ValidatePayload(base64.StdEncoding.EncodeToString(noisyPNG(t, 32, 32))); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://x/y.png", "example.com/a.png"} {
		if common.CodeOf(ValidateURL(raw)) != common.CodeInvalidInput {
			t.Errorf("%q must be INVALID_INPUT", raw)
		}
	}
	if err := ValidateURL("https://example.com/a.png"); err != nil {
		t.Errorf("https url rejected: %v", err)
	}
}

func TestFetch(t *testing.T) {
	data := noisyPNG(t, 40, 40)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(data)
		case "/text":
			_, _ = w.Write(bytes.Repeat([]byte("hello "), 400))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := newTestAcquirer().WithHTTPClient(srv.Client())
	ctx := context.Background()

	img, err := a.Acquire(ctx, entity.ImageSource{ImageURL: srv.URL + "/ok.png"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if img.Width != 40 || !bytes.Equal(img.Data, data) {
		t.Fatalf("unexpected image %dx%d", img.Width, img.Height)
	}

	for _, path := range []string{"/missing", "/text"} {
		_, err := a.Fetch(ctx, srv.URL+path)
		if common.CodeOf(err) != common.CodeAcquisitionFailure {
			t.Errorf("%s: code = %q (%v)", path, common.CodeOf(err), err)
		}
	}
}

func TestFetchRespectsSizeLimit(t *testing.T) {
	data := noisyPNG(t, 64, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	cfg := common.DefaultConfig().OCR
	cfg.MaxImageBytes = int64(len(data) / 2)
	a := NewAcquirer(cfg, nil).WithHTTPClient(srv.Client())
	if _, err := a.Fetch(context.Background(), srv.URL); common.CodeOf(err) != common.CodeAcquisitionFailure {
		t.Fatalf("expected ACQUISITION_FAILURE, got %v", err)
	}
}
