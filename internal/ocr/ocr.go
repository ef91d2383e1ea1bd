// Package ocr wraps an external text recognition engine. The Adapter turns a
// captured still into normalized raw text plus a confidence estimate; the
// engine itself is opaque.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/capture"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/runner"
)

// Input is one recognition request.
type Input struct {
	Image    image.Image
	Language string
}

// Output is what an engine returns. Confidence is 0 when the engine does
// not report one.
type Output struct {
	Text       string
	Confidence float32
	Warnings   []string
}

// Engine is a text recognizer.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Output, error)
}

// Recognizer converts an image to raw text.
type Recognizer interface {
	Recognize(ctx context.Context, img capture.Image, lang string) (string, error)
}

// Result is the detailed outcome of one recognition.
type Result struct {
	Text             string
	Confidence       float32 // blended 0..1
	EngineConfidence float32
	Engine           string
	Language         string
	Duration         time.Duration
	Warnings         []string
}

// Config controls the Adapter.
type Config struct {
	Language      string // default "por"
	Preprocess    bool
	Preprocessing PreprocessOptions
}

// Adapter runs an Engine over captured images.
type Adapter struct {
	engine Engine
	cfg    Config
	logger *slog.Logger
}

func NewAdapter(engine Engine, cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = constants.DefaultLanguage
	}
	cfg.Preprocessing = cfg.Preprocessing.withDefaults()
	return &Adapter{engine: engine, cfg: cfg, logger: logger}
}

// Recognize returns the normalized text of img.
func (a *Adapter) Recognize(ctx context.Context, img capture.Image, lang string) (string, error) {
	res, err := a.RecognizeDetailed(ctx, img, lang)
	return res.Text, err
}

// RecognizeDetailed decodes img and recognizes it.
func (a *Adapter) RecognizeDetailed(ctx context.Context, img capture.Image, lang string) (Result, error) {
	if len(img.Data) == 0 {
		return Result{}, fmt.Errorf("%w: empty image", common.ErrRecognitionFailure)
	}
	frame, err := imaging.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: decode image: %v", common.ErrRecognitionFailure, err)
	}
	return a.RecognizeFrame(ctx, frame, lang)
}

// RecognizeFrame recognizes an already decoded image.
func (a *Adapter) RecognizeFrame(ctx context.Context, frame image.Image, lang string) (Result, error) {
	start := time.Now()
	if lang == "" {
		lang = a.cfg.Language
	}
	if err := ctx.Err(); err != nil {
		return Result{}, common.Kind(common.ErrRecognitionFailure, err)
	}

	if a.cfg.Preprocess {
		frame = Preprocess(frame, a.cfg.Preprocessing)
	}

	a.logger.Debug("starting recognition", "engine", a.engine.Name(), "lang", lang, "scan_id", common.ScanIDFromContext(ctx))
	out, err := a.engine.Recognize(ctx, Input{Image: frame, Language: lang})
	if err != nil {
		a.logger.Error("recognition failed", "engine", a.engine.Name(), "error", err, "duration_ms", time.Since(start).Milliseconds())
		if errors.Is(err, common.ErrRecognitionFailure) {
			return Result{Warnings: out.Warnings}, err
		}
		return Result{Warnings: out.Warnings}, common.Kind(common.ErrRecognitionFailure, err)
	}

	text := Normalize(out.Text)
	heur := HeuristicConfidence(text)
	conf := heur
	if out.Confidence > 0 {
		conf = 0.7*out.Confidence + 0.3*heur
	}
	if conf > 1.0 {
		conf = 1.0
	}

	res := Result{
		Text:             text,
		Confidence:       conf,
		EngineConfidence: out.Confidence,
		Engine:           a.engine.Name(),
		Language:         lang,
		Duration:         time.Since(start),
		Warnings:         out.Warnings,
	}
	a.logger.Info("recognition finished",
		"engine", res.Engine,
		"chars", len(text),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// NewEngine builds the engine selected by cfg.Engine.
func NewEngine(cfg common.OCRConfig, r runner.Runner, logger *slog.Logger) (Engine, error) {
	switch cfg.Engine {
	case common.EngineTesseract, "":
		return NewTesseractCLI(TesseractConfig{
			Binary:        cfg.Tesseract,
			TessdataDir:   cfg.TessdataDir,
			PSM:           cfg.PSM,
			OEM:           cfg.OEM,
			TSVConfidence: cfg.EnableTSVConfidence,
		}, r, logger), nil
	case common.EngineGosseract:
		return NewGosseract(GosseractConfig{
			TessdataDir: cfg.TessdataDir,
			PSM:         cfg.PSM,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown ocr engine %q", common.ErrInvalidInput, cfg.Engine)
	}
}

// AdapterConfig maps the OCR settings onto an Adapter Config.
func AdapterConfig(cfg common.OCRConfig) Config {
	return Config{
		Language:   cfg.Language,
		Preprocess: cfg.Preprocess,
		Preprocessing: PreprocessOptions{
			Binarize: cfg.Binarize,
		},
	}
}
