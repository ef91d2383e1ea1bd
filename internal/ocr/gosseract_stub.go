//go:build !gosseract

package ocr

import (
	"errors"
	"log/slog"
)

// NewGosseract fails in binaries built without the gosseract tag.
func NewGosseract(GosseractConfig, *slog.Logger) (Engine, error) {
	return nil, errors.New("gosseract engine not compiled in: rebuild with -tags gosseract")
}
