package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/capture"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/ocr"
	"github.com/joseph-ayodele/fichas-scanner/internal/runner"
)

var (
	ocrLang     string
	ocrDetailed bool

	// ocrEngine replaces the configured engine when set.
	ocrEngine ocr.Engine
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <image>",
	Short: "Recognize the text of an image file",
	Args:  cobra.ExactArgs(1),
	RunE:  runOCR,
}

func init() {
	ocrCmd.Flags().StringVar(&ocrLang, "lang", "", "OCR language (defaults to the configured one)")
	ocrCmd.Flags().BoolVar(&ocrDetailed, "detailed", false, "print engine, confidence and warnings")
	rootCmd.AddCommand(ocrCmd)
}

func runOCR(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !constants.IsImagePath(path) {
		return fmt.Errorf("%w: %s is not a supported image", common.ErrInvalidInput, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	engine := ocrEngine
	if engine == nil {
		engine, err = ocr.NewEngine(cfg.OCR, runner.NewExecRunner(logger), logger)
		if err != nil {
			return err
		}
	}
	adapter := ocr.NewAdapter(engine, ocr.AdapterConfig(cfg.OCR), logger)

	lang := ocrLang
	if lang == "" {
		lang = cfg.OCR.Language
	}
	res, err := adapter.RecognizeDetailed(cmd.Context(), capture.Image{Data: data, Format: constants.NormalizeExt(filepath.Ext(path))}, lang)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if ocrDetailed {
		fmt.Fprintf(w, "engine:     %s\n", res.Engine)
		fmt.Fprintf(w, "language:   %s\n", res.Language)
		fmt.Fprintf(w, "confidence: %.2f\n", res.Confidence)
		fmt.Fprintf(w, "duration:   %s\n", res.Duration)
		for _, warn := range res.Warnings {
			fmt.Fprintf(w, "warning:    %s\n", warn)
		}
		fmt.Fprintln(w)
	}
	_, err = fmt.Fprintln(w, res.Text)
	return err
}
