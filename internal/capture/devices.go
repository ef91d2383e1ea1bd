package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/runner"
)

// NewDevice builds the device selected by cfg.Device.
func NewDevice(cfg common.CaptureConfig, r runner.Runner, logger *slog.Logger) (Device, error) {
	switch cfg.Device {
	case common.DeviceFile:
		return NewFileDevice(cfg.Source), nil
	case common.DeviceFolder:
		return NewFolderDevice(cfg.Source, logger), nil
	case common.DeviceCommand, "":
		return NewCommandDevice(cfg.Source, cfg.Command, r, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown capture device %q", common.ErrInvalidInput, cfg.Device)
	}
}

// ImageDevice serves a fixed in-memory frame.
type ImageDevice struct {
	img image.Image
}

func NewImageDevice(img image.Image) *ImageDevice { return &ImageDevice{img: img} }

func (d *ImageDevice) Name() string { return "image" }

func (d *ImageDevice) Open(context.Context) (Stream, error) {
	return &staticStream{img: d.img}, nil
}

// FileDevice treats an image file as the camera. The file is decoded when
// the stream opens, so a missing or unreadable file makes the camera
// unavailable.
type FileDevice struct {
	path string
}

func NewFileDevice(path string) *FileDevice { return &FileDevice{path: path} }

func (d *FileDevice) Name() string { return "file:" + d.path }

func (d *FileDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := imaging.Open(d.path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.path, err)
	}
	return &staticStream{img: img}, nil
}

type staticStream struct {
	mu     sync.Mutex
	img    image.Image
	closed bool
}

func (s *staticStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: stream closed", common.ErrNoFrameAvailable)
	}
	if s.img == nil {
		return nil, common.ErrNoFrameAvailable
	}
	return s.img, nil
}

func (s *staticStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.img = nil
	s.mu.Unlock()
	return nil
}

// CommandDevice grabs one frame per call by running an external command
// (ffmpeg against a V4L2 node by default) and decoding its stdout.
type CommandDevice struct {
	source  string
	command string
	runner  runner.Runner
	logger  *slog.Logger
}

func NewCommandDevice(source, command string, r runner.Runner, logger *slog.Logger) *CommandDevice {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = runner.NewExecRunner(logger)
	}
	if command == "" {
		command = common.DefaultCaptureCommand
	}
	return &CommandDevice{source: source, command: command, runner: r, logger: logger}
}

func (d *CommandDevice) Name() string { return "command:" + d.source }

// Open checks the device node can be opened for reading and grabs one
// frame, so a busy or denied camera fails here instead of on capture.
func (d *CommandDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.source != "" {
		f, err := os.OpenFile(d.source, os.O_RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", d.source, err)
		}
		_ = f.Close()
	}
	argv := runner.SplitCommand(d.command, map[string]string{"device": d.source})
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty capture command", common.ErrInvalidInput)
	}
	s := &commandStream{argv: argv, runner: d.runner, logger: d.logger}
	if _, err := s.grab(ctx); err != nil {
		return nil, fmt.Errorf("device %s: first frame: %w", d.source, err)
	}
	d.logger.Debug("capture command ok", "device", d.source, "cmd", argv[0])
	return s, nil
}

type commandStream struct {
	argv   []string
	runner runner.Runner
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (s *commandStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: stream closed", common.ErrNoFrameAvailable)
	}
	img, err := s.grab(ctx)
	if err != nil {
		return nil, common.Kind(common.ErrNoFrameAvailable, err)
	}
	return img, nil
}

// grab runs the capture command once and decodes its stdout.
func (s *commandStream) grab(ctx context.Context) (image.Image, error) {
	out, errb, err := s.runner.Run(ctx, s.argv[0], s.argv[1:]...)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %s", s.argv[0], err, runner.Truncate(string(errb), 512))
	}
	if len(out) == 0 {
		return nil, errors.New("capture command produced no output")
	}
	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

func (s *commandStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
