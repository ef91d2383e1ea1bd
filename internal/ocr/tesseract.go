package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/fichas-scanner/internal/runner"
)

// TesseractConfig configures the tesseract command line engine.
type TesseractConfig struct {
	Binary        string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir   string
	PSM           int // e.g., 6 is good for uniform block of text
	OEM           int // 1 = LSTM; leave 0 to use default
	TSVConfidence bool
}

// TesseractCLI runs the tesseract binary on a temporary PNG.
type TesseractCLI struct {
	cfg    TesseractConfig
	runner runner.Runner
	logger *slog.Logger
}

func NewTesseractCLI(cfg TesseractConfig, r runner.Runner, logger *slog.Logger) *TesseractCLI {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = runner.NewExecRunner(logger)
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	return &TesseractCLI{cfg: cfg, runner: r, logger: logger}
}

func (t *TesseractCLI) Name() string { return "tesseract" }

func (t *TesseractCLI) Recognize(ctx context.Context, in Input) (Output, error) {
	if in.Image == nil {
		return Output{}, fmt.Errorf("tesseract: nil image")
	}
	tmpDir, err := os.MkdirTemp("", "fichas-ocr-*")
	if err != nil {
		return Output{}, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", err)
		}
	}()

	path := filepath.Join(tmpDir, "frame.png")
	if err := imaging.Save(in.Image, path); err != nil {
		return Output{}, fmt.Errorf("write frame: %w", err)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, t.args(path, in.Language)...)
	if err != nil {
		return Output{Warnings: warning(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	res := Output{Text: string(out), Warnings: warning(errb)}

	if t.cfg.TSVConfidence {
		tsv, errb, err := t.runner.Run(ctx, t.cfg.Binary, append(t.args(path, in.Language), "tsv")...)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("tesseract TSV: %v", err))
			res.Warnings = append(res.Warnings, warning(errb)...)
		} else {
			res.Confidence = ParseTSVConfidence(tsv)
		}
	}
	return res, nil
}

func (t *TesseractCLI) args(path, lang string) []string {
	args := []string{path, "stdout", "-l", lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}

// ParseTSVConfidence returns the mean word confidence of tesseract TSV
// output in 0..1. Rows with conf -1 (non-word levels) are skipped.
func ParseTSVConfidence(out []byte) float32 {
	lines := strings.Split(string(out), "\n")
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := strings.TrimSpace(cols[10])
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / n // 0..100
	return float32(mean / 100.0)
}

func warning(stderr []byte) []string {
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		return nil
	}
	return []string{runner.Truncate(s, 1<<10)}
}
