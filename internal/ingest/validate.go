package ingest

import (
	"bytes"
	"fmt"
	"image"
	"mime"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	octetStream    = "application/octet-stream"
	maxImagePixels = 40_000_000
)

// ResolveMimeType picks the effective media type: the declared one when it
// says something, else a guess from the filename extension, else
// application/octet-stream.
func ResolveMimeType(declared, filename string) string {
	if mediaType := normalizeMediaType(declared); mediaType != "" && mediaType != octetStream {
		return mediaType
	}
	if ext := filepath.Ext(filename); ext != "" {
		if guessed := normalizeMediaType(mime.TypeByExtension(strings.ToLower(ext))); guessed != "" {
			return guessed
		}
	}
	return octetStream
}

func normalizeMediaType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return ""
	}
	return strings.ToLower(mediaType)
}

// checkImage decodes data fully with the registered codecs.
func checkImage(data []byte) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: not a decodable image", ErrInvalidFileFormat)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %s image has no pixels", ErrInvalidFileFormat, format)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return fmt.Errorf("%w: %s image is %dx%d, above the pixel limit", ErrInvalidFileFormat, format, cfg.Width, cfg.Height)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: corrupt %s image", ErrInvalidFileFormat, format)
	}
	return nil
}

// storageFilename prefixes the declared name's base with the job id so
// backend names never collide.
func storageFilename(jobID, declared string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(declared), `\`, "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f, r == '"':
			return -1
		default:
			return r
		}
	}, base)
	if base == "" || base == "." || base == "/" || base == ".." {
		base = "image.bin"
	}
	return jobID + "_" + base
}
