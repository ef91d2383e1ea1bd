package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadConfigFile_TOMLThenEnv(t *testing.T) {
	clearEnv(t, "DB_URL", "DB_DIAL_TIMEOUT", "CAPTURE_DEVICE", "CAPTURE_SOURCE",
		"CAPTURE_JPEG_QUALITY", "OCR_PSM", "OCR_PREPROCESS", "PIPELINE_TIMEOUT")
	path := filepath.Join(t.TempDir(), "fichas.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
url = "/var/lib/fichas/scans.db"
dial_timeout = "7s"

[capture]
device = "folder"
source = "/srv/inbox"

[ocr]
language = "por+eng"
psm = 6
preprocess = false

[pipeline]
timeout = "45s"
`), 0o644))
	t.Setenv("OCR_LANG", "eng")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/fichas/scans.db", cfg.Database.DSN)
	assert.Equal(t, 7*time.Second, cfg.Database.DialTimeout)
	assert.Equal(t, DeviceFolder, cfg.Capture.Device)
	assert.Equal(t, "/srv/inbox", cfg.Capture.Source)
	assert.Equal(t, "eng", cfg.OCR.Language, "env wins over the file")
	assert.Equal(t, 6, cfg.OCR.PSM)
	assert.False(t, cfg.OCR.Preprocess)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, 90, cfg.Capture.JPEGQuality, "defaults survive")
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.toml"))
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[pipeline]\ntimeout = \"soon\"\n"), 0o644))
	_, err = LoadConfigFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.timeout")
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Capture.Device = "webcam"
	cfg.OCR.MinConfidence = 1.5
	cfg.Capture.Command = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "CAPTURE_DEVICE")
	assert.Contains(t, err.Error(), "OCR_MIN_CONFIDENCE")

	cfg = DefaultConfig()
	cfg.Capture.Command = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAPTURE_COMMAND")
}

func TestKind(t *testing.T) {
	cause := errors.New("device busy")
	err := Kind(ErrCameraUnavailable, cause)
	assert.ErrorIs(t, err, ErrCameraUnavailable)
	assert.Contains(t, err.Error(), "device busy")

	assert.Same(t, err, Kind(ErrCameraUnavailable, err), "already of that kind")
	assert.Equal(t, ErrNoFrameAvailable, Kind(ErrNoFrameAvailable, nil))
}

func TestToStatus(t *testing.T) {
	cases := map[error]codes.Code{
		Kind(ErrCameraUnavailable, errors.New("x")):  codes.Unavailable,
		Kind(ErrPublishFailure, errors.New("x")):     codes.Unavailable,
		Kind(ErrNoFrameAvailable, errors.New("x")):   codes.FailedPrecondition,
		Kind(ErrRecognitionFailure, errors.New("x")): codes.Internal,
		Kind(ErrNotFound, errors.New("x")):           codes.NotFound,
		Kind(ErrValidation, errors.New("x")):         codes.InvalidArgument,
		InvalidArgumentError("bad"):                  codes.InvalidArgument,
	}
	for err, want := range cases {
		assert.Equal(t, want, status.Code(ToStatus(err)), err.Error())
	}
	assert.NoError(t, ToStatus(nil))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("name", "  ", Required).
		Field("mode", "x", OneOf("a", "b")).
		Field("n", 5, Between(1, 3)).
		Field("ok", "a", Required, OneOf("a"))
	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 3)
	assert.ErrorIs(t, v.Error(), ErrValidation)
	assert.Equal(t, codes.InvalidArgument, status.Code(ValidateAndReturnError(v)))

	assert.NoError(t, NewValidator().Field("n", float32(0.5), Between(0, 1)).Error())
}

func TestScanIDContext(t *testing.T) {
	ctx := WithScanID(context.Background(), "abc")
	assert.Equal(t, "abc", ScanIDFromContext(ctx))
	assert.Empty(t, ScanIDFromContext(context.Background()))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
