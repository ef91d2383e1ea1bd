package ocr

// GosseractConfig configures the in-process libtesseract engine.
type GosseractConfig struct {
	TessdataDir string
	PSM         int
}
