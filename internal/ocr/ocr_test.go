package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/fichas-scanner/internal/capture"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
)

func jpegImage(t *testing.T, w, h int) capture.Image {
	t.Helper()
	img, err := capture.EncodeJPEG(imaging.New(w, h, color.White), 90)
	require.NoError(t, err)
	return img
}

type fakeEngine struct {
	out   Output
	err   error
	calls []Input
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Recognize(_ context.Context, in Input) (Output, error) {
	e.calls = append(e.calls, in)
	return e.out, e.err
}

func TestAdapter_RecognizeNormalizesText(t *testing.T) {
	eng := &fakeEngine{out: Output{Text: "Nome:  Joao\r\n-----\r\nCPF:\t111.222.333-44  \r\n\r\n\r\n\r\nFim"}}
	a := NewAdapter(eng, Config{}, nil)

	text, err := a.Recognize(context.Background(), jpegImage(t, 32, 32), "")
	require.NoError(t, err)
	assert.Equal(t, "Nome: Joao\n\nCPF: 111.222.333-44\n\nFim", text)
	require.Len(t, eng.calls, 1)
	assert.Equal(t, "por", eng.calls[0].Language)
}

func TestAdapter_EngineErrorIsRecognitionFailure(t *testing.T) {
	a := NewAdapter(&fakeEngine{err: errors.New("exit status 1")}, Config{}, nil)

	_, err := a.Recognize(context.Background(), jpegImage(t, 8, 8), "por")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrRecognitionFailure))
}

func TestAdapter_BadImageIsRecognitionFailure(t *testing.T) {
	eng := &fakeEngine{}
	a := NewAdapter(eng, Config{}, nil)

	_, err := a.Recognize(context.Background(), capture.Image{}, "por")
	assert.True(t, errors.Is(err, common.ErrRecognitionFailure))

	_, err = a.Recognize(context.Background(), capture.Image{Data: []byte("garbage")}, "por")
	assert.True(t, errors.Is(err, common.ErrRecognitionFailure))
	assert.Empty(t, eng.calls)
}

func TestAdapter_CancelledContext(t *testing.T) {
	eng := &fakeEngine{}
	a := NewAdapter(eng, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Recognize(ctx, jpegImage(t, 8, 8), "por")
	assert.True(t, errors.Is(err, common.ErrRecognitionFailure))
	assert.Empty(t, eng.calls)
}

func TestAdapter_EmptyTextIsNotAnError(t *testing.T) {
	a := NewAdapter(&fakeEngine{}, Config{}, nil)
	res, err := a.RecognizeDetailed(context.Background(), jpegImage(t, 8, 8), "por")
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
	assert.Equal(t, float32(0), res.Confidence)
}

func TestAdapter_BlendsEngineConfidence(t *testing.T) {
	eng := &fakeEngine{out: Output{Text: "Nome: Joao", Confidence: 0.9}}
	a := NewAdapter(eng, Config{}, nil)

	res, err := a.RecognizeDetailed(context.Background(), jpegImage(t, 8, 8), "eng")
	require.NoError(t, err)
	heur := HeuristicConfidence("Nome: Joao")
	assert.InDelta(t, 0.7*0.9+0.3*heur, res.Confidence, 1e-6)
	assert.Equal(t, float32(0.9), res.EngineConfidence)
	assert.Equal(t, "eng", res.Language)
	assert.Equal(t, "fake", res.Engine)
}

func TestAdapter_PreprocessUpscalesSmallFrames(t *testing.T) {
	eng := &fakeEngine{}
	a := NewAdapter(eng, Config{Preprocess: true, Preprocessing: PreprocessOptions{MinWidth: 200}}, nil)

	_, err := a.Recognize(context.Background(), jpegImage(t, 100, 50), "por")
	require.NoError(t, err)
	require.Len(t, eng.calls, 1)
	b := eng.calls[0].Image.Bounds()
	assert.Equal(t, 200, b.Dx())
	assert.Equal(t, 100, b.Dy())
}

func TestPreprocess_Binarize(t *testing.T) {
	src := imaging.New(4, 1, color.Black)
	src.Set(0, 0, color.White)
	src.Set(1, 0, color.Gray{Y: 100})

	out := Preprocess(src, PreprocessOptions{MinWidth: 1, Binarize: true, Threshold: 128})
	gray, ok := out.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, uint8(255), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), gray.GrayAt(3, 0).Y)
}

// Normalized text can extract differently from the raw engine output:
// inner space runs collapse and a phone split by a double space matches.
func TestNormalize_ChangesExtractedValues(t *testing.T) {
	raw := "Nome: Maria  Silva\nTelefone: (11)  98888-7777\n"

	before := extract.Extract(raw)
	assert.Equal(t, "Maria  Silva", before.Nome)
	assert.Equal(t, "", before.Telefone)

	after := extract.Extract(Normalize(raw))
	assert.Equal(t, "Maria Silva", after.Nome)
	assert.Equal(t, "(11) 98888-7777", after.Telefone)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "CPF: 012.345.678-90", Normalize("CPF: 012.345.678-90"))
	assert.Equal(t, "a\n\nb", Normalize("a\n\n\n\n\nb"))
	assert.Equal(t, "a\n\nb", Normalize("a\n______\nb"))
	assert.Equal(t, "Telefone: (11) 98888-7777", Normalize("Telefone:\t(11)   98888-7777   "))
}

func TestHeuristicConfidence(t *testing.T) {
	assert.Equal(t, float32(0), HeuristicConfidence(""))
	low := HeuristicConfidence("lorem ipsum")
	mid := HeuristicConfidence("Nome: Joao\nCPF: 1")
	full := HeuristicConfidence("Nome: Ana Paula Souza\nCPF: 987.654.321-00\nData de Nascimento: 23/04/1988\n" +
		"Telefone: (81) 3222-1100\nCEP: 50030-230\nEndereço: Rua da Aurora\nNúmero: 120\n" +
		"Bairro: Boa Vista\nCidade: Recife\nEmail: ana@example.com")

	assert.Less(t, low, mid)
	assert.Less(t, mid, full)
	assert.LessOrEqual(t, full, float32(1.0))
	assert.InDelta(t, 1.0, full, 1e-6)
}

type fakeRunner struct {
	stdout map[bool][]byte // keyed by "tsv" mode
	err    error
	args   [][]string
	seen   []string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.args = append(r.args, append([]string{name}, args...))
	if _, err := os.Stat(args[0]); err == nil {
		r.seen = append(r.seen, args[0])
	}
	if r.err != nil {
		return nil, []byte("Error opening data file"), r.err
	}
	tsv := args[len(args)-1] == "tsv"
	return r.stdout[tsv], nil, nil
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t20\t10\t90\tNome:\n" +
	"5\t1\t1\t1\t1\t2\t35\t10\t20\t10\t70\tJoao\n"

func TestTesseractCLI_Recognize(t *testing.T) {
	r := &fakeRunner{stdout: map[bool][]byte{false: []byte("Nome: Joao\n"), true: []byte(sampleTSV)}}
	eng := NewTesseractCLI(TesseractConfig{Binary: "/usr/bin/tesseract", PSM: 6, OEM: 1, TessdataDir: "/td", TSVConfidence: true}, r, nil)

	out, err := eng.Recognize(context.Background(), Input{Image: imaging.New(4, 4, color.White), Language: "por"})
	require.NoError(t, err)
	assert.Equal(t, "Nome: Joao\n", out.Text)
	assert.InDelta(t, 0.8, out.Confidence, 1e-6)

	require.Len(t, r.args, 2)
	path := r.args[0][1]
	assert.Equal(t, []string{"/usr/bin/tesseract", path, "stdout", "-l", "por", "--psm", "6", "--oem", "1", "--tessdata-dir", "/td"}, r.args[0])
	assert.Equal(t, "tsv", r.args[1][len(r.args[1])-1])

	require.Contains(t, r.seen, path, "frame file must exist while tesseract runs")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "temp frame must be removed")
}

func TestTesseractCLI_Failure(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 1")}
	eng := NewTesseractCLI(TesseractConfig{}, r, nil)

	out, err := eng.Recognize(context.Background(), Input{Image: imaging.New(4, 4, color.White), Language: "xyz"})
	require.Error(t, err)
	assert.NotEmpty(t, out.Warnings)
	assert.Equal(t, "tesseract", r.args[0][0])

	_, statErr := os.Stat(r.args[0][1])
	assert.True(t, os.IsNotExist(statErr))

	a := NewAdapter(eng, Config{}, nil)
	_, err = a.RecognizeFrame(context.Background(), imaging.New(4, 4, color.White), "xyz")
	assert.True(t, errors.Is(err, common.ErrRecognitionFailure))
}

func TestParseTSVConfidence(t *testing.T) {
	assert.Equal(t, float32(0), ParseTSVConfidence(nil))
	assert.Equal(t, float32(0), ParseTSVConfidence([]byte("level\tconf\n")))
	assert.InDelta(t, 0.8, ParseTSVConfidence([]byte(sampleTSV)), 1e-6)
}

func TestNewEngine(t *testing.T) {
	eng, err := NewEngine(common.OCRConfig{Engine: common.EngineTesseract}, &fakeRunner{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "tesseract", eng.Name())

	_, err = NewEngine(common.OCRConfig{Engine: "paddle"}, nil, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestAdapterConfig(t *testing.T) {
	cfg := AdapterConfig(common.OCRConfig{Language: "eng", Preprocess: true, Binarize: true})
	assert.Equal(t, "eng", cfg.Language)
	assert.True(t, cfg.Preprocess)
	assert.True(t, cfg.Preprocessing.Binarize)
}
