// Package imaging acquires invoice images from inline payloads or URLs and
// checks that they decode as a supported raster format.
package imaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

var reBase64 = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

// Image is an acquired, decodable image.
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
	Hash   string // hex sha256 of Data
}

type Acquirer struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// NewAcquirer builds an acquirer bounded by cfg.MaxImageBytes and cfg.FetchTimeout.
func NewAcquirer(cfg common.OCRConfig, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Acquirer{
		client:   &http.Client{Timeout: timeout},
		maxBytes: cfg.MaxImageBytes,
		logger:   logger,
	}
}

// WithHTTPClient swaps the client used by Fetch.
func (a *Acquirer) WithHTTPClient(c *http.Client) *Acquirer {
	a.client = c
	return a
}

// Acquire resolves src, preferring the inline payload over the URL.
func (a *Acquirer) Acquire(ctx context.Context, src entity.ImageSource) (*Image, error) {
	switch {
	case src.ImageData != "":
		return a.Decode(src.ImageData)
	case src.ImageURL != "":
		return a.Fetch(ctx, src.ImageURL)
	default:
		return nil, common.InvalidInput("image_data or image_url is required")
	}
}

// Decode turns a base64 payload (optionally a data URI) into an Image.
func (a *Acquirer) Decode(payload string) (*Image, error) {
	data, err := DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	if a.maxBytes > 0 && int64(len(data)) > a.maxBytes {
		return nil, common.InvalidImage(fmt.Sprintf("image exceeds %d bytes", a.maxBytes))
	}
	return a.inspect(data)
}

// Fetch downloads url and checks the body is a supported image.
func (a *Acquirer) Fetch(ctx context.Context, url string) (*Image, error) {
	if err := ValidateURL(url); err != nil {
		return nil, err
	}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(url), nil)
	if err != nil {
		return nil, common.AcquisitionFailure("build request", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Error("image fetch failed", "url", url, "error", err)
		return nil, common.AcquisitionFailure("download image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, common.AcquisitionFailure(fmt.Sprintf("download image: http status %d", resp.StatusCode), nil)
	}

	var body io.Reader = resp.Body
	if a.maxBytes > 0 {
		body = io.LimitReader(resp.Body, a.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, common.AcquisitionFailure("read image body", err)
	}
	if a.maxBytes > 0 && int64(len(data)) > a.maxBytes {
		return nil, common.AcquisitionFailure(fmt.Sprintf("image exceeds %d bytes", a.maxBytes), nil)
	}
	a.logger.Debug("image fetched", "url", url, "bytes", len(data), "duration_ms", time.Since(start).Milliseconds())

	img, err := a.inspect(data)
	if err != nil {
		return nil, common.AcquisitionFailure("downloaded content is not a supported image", err)
	}
	return img, nil
}

func (a *Acquirer) inspect(data []byte) (*Image, error) {
	if len(data) < constants.MinImageBytes {
		return nil, common.InvalidImage(fmt.Sprintf("image is smaller than %d bytes", constants.MinImageBytes))
	}
	if _, ok := constants.SniffImageFormat(data); !ok {
		return nil, common.InvalidImage("unrecognised image signature")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, common.AcquisitionFailure("decode image header", err)
	}
	sum := sha256.Sum256(data)
	return &Image{
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Hash:   hex.EncodeToString(sum[:]),
	}, nil
}

// DecodePayload strips a data-URI prefix, checks the base64 alphabet and
// decodes. Failures are INVALID_IMAGE_FORMAT errors.
func DecodePayload(payload string) ([]byte, error) {
	s := strings.TrimSpace(payload)
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, common.InvalidImage("malformed data uri")
		}
		s = s[i+1:]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, common.InvalidImage("empty image payload")
	}
	if !reBase64.MatchString(s) {
		return nil, common.InvalidImage("image payload is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, common.InvalidImage("image payload is not valid base64")
		}
	}
	return data, nil
}

// ValidatePayload is the structural check applied before any work is
// scheduled: base64, minimum size and a known file signature.
func ValidatePayload(payload string) error {
	data, err := DecodePayload(payload)
	if err != nil {
		return err
	}
	if len(data) < constants.MinImageBytes {
		return common.InvalidImage(fmt.Sprintf("image is smaller than %d bytes", constants.MinImageBytes))
	}
	if _, ok := constants.SniffImageFormat(data); !ok {
		return common.InvalidImage("unrecognised image signature")
	}
	return nil
}

// ValidateURL accepts absolute http(s) URLs.
func ValidateURL(raw string) error {
	if err := common.CheckImageURL(raw); err != nil {
		return common.NewAppError(common.CodeInvalidInput, "invalid image url: "+err.Error(), common.ErrInvalidInput)
	}
	return nil
}
