package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// CompressionConfig controls response compression.
type CompressionConfig struct {
	// MinSize is the smallest response body, in bytes, that gets compressed.
	MinSize int
	// Level is the gzip level, 1-9.
	Level int
}

// DefaultCompressionConfig returns the settings used by the server.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   6,
	}
}

// NewCompression returns gzip middleware for cfg. An invalid cfg falls back
// to the gzhttp defaults.
func NewCompression(cfg CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapper, err := gzhttp.NewWrapper(
			gzhttp.MinSize(cfg.MinSize),
			gzhttp.CompressionLevel(cfg.Level),
		)
		if err != nil {
			return gzhttp.GzipHandler(next)
		}
		return wrapper(next)
	}
}
