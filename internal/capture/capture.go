// Package capture owns the camera: it acquires a video stream from a Device,
// keeps at most one live Session, and turns the current frame into a
// compressed still image on demand.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/fichas-scanner/internal/common"
)

// Device is the host media-capture capability.
type Device interface {
	// Open requests a video-only stream. Permission denial or absent
	// hardware is reported as an error.
	Open(ctx context.Context) (Stream, error)
	Name() string
}

// Stream is an open video stream owned by exactly one Session.
type Stream interface {
	// Frame returns the current decoded frame. Before the stream has
	// produced one it returns common.ErrNoFrameAvailable.
	Frame(ctx context.Context) (image.Image, error)
	// Close releases the underlying media resource. Safe to call twice.
	Close() error
}

// Image is a still snapshot encoded as a compressed raster.
type Image struct {
	Data     []byte
	Format   string // "jpeg"
	Width    int
	Height   int
	Captured time.Time
}

// Session represents an active camera stream.
type Session struct {
	ID      uuid.UUID
	Device  string
	Started time.Time
	stream  Stream
}

// Config holds capture settings.
type Config struct {
	JPEGQuality int // 1..100, default 90
}

// Controller manages the camera lifecycle.
type Controller struct {
	device Device
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	session *Session
}

func NewController(device Device, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 90
	}
	return &Controller{device: device, cfg: cfg, logger: logger}
}

// Start acquires a new stream. A live session is released first, so the
// device is never held twice.
func (c *Controller) Start(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	stream, err := c.device.Open(ctx)
	if err != nil {
		c.logger.Warn("camera open failed", "device", c.device.Name(), "error", err)
		return nil, common.Kind(common.ErrCameraUnavailable, err)
	}
	s := &Session{
		ID:      uuid.New(),
		Device:  c.device.Name(),
		Started: time.Now(),
		stream:  stream,
	}
	c.session = s
	c.logger.Info("camera started", "session_id", s.ID, "device", s.Device)
	return s, nil
}

// Stop releases the active stream. It is a no-op when no session is live.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.session == nil {
		return
	}
	s := c.session
	c.session = nil
	if err := s.stream.Close(); err != nil {
		c.logger.Warn("camera release failed", "session_id", s.ID, "error", err)
	}
	c.logger.Info("camera stopped", "session_id", s.ID, "duration_ms", time.Since(s.Started).Milliseconds())
}

// Active reports whether a session is live.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Session returns the live session or nil.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Snapshot encodes the current frame of the live session as JPEG.
func (c *Controller) Snapshot(ctx context.Context) (Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Image{}, fmt.Errorf("%w: no active session", common.ErrNoFrameAvailable)
	}
	frame, err := c.session.stream.Frame(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNoFrameAvailable) {
			return Image{}, err
		}
		return Image{}, common.Kind(common.ErrNoFrameAvailable, err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return Image{}, fmt.Errorf("%w: empty frame", common.ErrNoFrameAvailable)
	}

	img, err := EncodeJPEG(frame, c.cfg.JPEGQuality)
	if err != nil {
		return Image{}, err
	}
	c.logger.Debug("snapshot taken", "session_id", c.session.ID, "width", img.Width, "height", img.Height, "bytes", len(img.Data))
	return img, nil
}

// EncodeJPEG compresses frame into an Image.
func EncodeJPEG(frame image.Image, quality int) (Image, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return Image{}, fmt.Errorf("encode snapshot: %w", err)
	}
	b := frame.Bounds()
	return Image{
		Data:     buf.Bytes(),
		Format:   "jpeg",
		Width:    b.Dx(),
		Height:   b.Dy(),
		Captured: time.Now(),
	}, nil
}
