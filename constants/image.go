package constants

import (
	"bytes"
	"strings"
)

// MinImageBytes is the smallest decoded payload accepted as an image.
const MinImageBytes = 1024

// AllowedExtensions lists image file extensions picked up from disk (lowercase, no dot).
var AllowedExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {}, "tif": {}, "tiff": {}, "webp": {},
}

// NormalizeExt lowercases and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

type signature struct {
	format string
	prefix []byte
}

var signatures = []signature{
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}},
	{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}},
	{"gif", []byte("GIF87a")},
	{"gif", []byte("GIF89a")},
	{"bmp", []byte("BM")},
	{"tiff", []byte{'I', 'I', '*', 0x00}},
	{"tiff", []byte{'M', 'M', 0x00, '*'}},
}

// SniffImageFormat matches data against known image file signatures.
func SniffImageFormat(data []byte) (string, bool) {
	for _, s := range signatures {
		if bytes.HasPrefix(data, s.prefix) {
			return s.format, true
		}
	}
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "webp", true
	}
	return "", false
}
