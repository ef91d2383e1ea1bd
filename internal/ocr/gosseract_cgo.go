//go:build gosseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Gosseract recognizes text through libtesseract bindings. A client is
// created per call and closed before returning.
type Gosseract struct {
	cfg    GosseractConfig
	logger *slog.Logger
}

// NewGosseract returns the libtesseract engine.
func NewGosseract(cfg GosseractConfig, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gosseract{cfg: cfg, logger: logger}, nil
}

func (g *Gosseract) Name() string { return "gosseract" }

func (g *Gosseract) Recognize(ctx context.Context, in Input) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if in.Image == nil {
		return Output{}, fmt.Errorf("gosseract: nil image")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, in.Image, imaging.PNG); err != nil {
		return Output{}, fmt.Errorf("encode frame: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if g.cfg.TessdataDir != "" {
		if err := client.SetTessdataPrefix(g.cfg.TessdataDir); err != nil {
			return Output{}, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(in.Language); err != nil {
		return Output{}, fmt.Errorf("failed to set language: %w", err)
	}
	if g.cfg.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(g.cfg.PSM)); err != nil {
			return Output{}, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Output{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return Output{}, fmt.Errorf("OCR failed: %w", err)
	}

	out := Output{Text: text}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("word boxes: %v", err))
		return out, nil
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	if len(boxes) > 0 {
		out.Confidence = float32(sum / float64(len(boxes)) / 100.0)
	}
	return out, nil
}
