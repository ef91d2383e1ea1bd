// Package pipeline sequences capture, recognition, extraction and hand-off
// behind a small state machine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/capture"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
	"github.com/joseph-ayodele/fichas-scanner/internal/notify"
	"github.com/joseph-ayodele/fichas-scanner/internal/ocr"
	"github.com/joseph-ayodele/fichas-scanner/internal/publish"
	"github.com/joseph-ayodele/fichas-scanner/internal/repository"
)

// Camera is the capture side of the pipeline.
type Camera interface {
	Start(ctx context.Context) (*capture.Session, error)
	Stop()
	Snapshot(ctx context.Context) (capture.Image, error)
	Session() *capture.Session
}

// Recognizer turns an image into text with a confidence estimate.
type Recognizer interface {
	RecognizeDetailed(ctx context.Context, img capture.Image, lang string) (ocr.Result, error)
}

// View is a consistent copy of the orchestrator's observable state.
type View struct {
	State      State
	Busy       bool
	Result     extract.Record
	HasResult  bool
	LastError  error
	LastScanID uuid.UUID
	UpdatedAt  time.Time
}

// Outcome is what a single recognize-and-extract pass produced.
type Outcome struct {
	ScanID      uuid.UUID
	Record      extract.Record
	Text        string
	Confidence  float32
	NeedsReview bool
	Engine      string
}

// Orchestrator owns the processing state and serializes runs. All methods
// are safe for concurrent use.
type Orchestrator struct {
	camera     Camera
	recognizer Recognizer
	extractor  extract.Extractor
	publisher  publish.Publisher
	notifier   notify.Notifier
	scans      repository.ScanRepository
	logger     *slog.Logger

	lang          string
	minConfidence float32
	timeout       time.Duration
	observers     []Observer

	mu         sync.Mutex
	state      State
	busy       bool
	result     extract.Record
	hasResult  bool
	lastErr    error
	lastScanID uuid.UUID
	updatedAt  time.Time
	pending    []Transition
}

type Option func(*Orchestrator)

func WithPublisher(p publish.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

func WithScanRepository(r repository.ScanRepository) Option {
	return func(o *Orchestrator) { o.scans = r }
}

func WithExtractor(fn extract.Extractor) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.extractor = fn
		}
	}
}

func WithLanguage(lang string) Option {
	return func(o *Orchestrator) {
		if lang != "" {
			o.lang = lang
		}
	}
}

// WithMinConfidence flags results below c for review.
func WithMinConfidence(c float32) Option {
	return func(o *Orchestrator) {
		if c >= 0 && c <= 1 {
			o.minConfidence = c
		}
	}
}

// WithTimeout bounds a single Process run.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

func NewOrchestrator(camera Camera, recognizer Recognizer, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		camera:        camera,
		recognizer:    recognizer,
		extractor:     extract.Extract,
		notifier:      notify.NewLogNotifier(logger),
		logger:        logger,
		lang:          constants.DefaultLanguage,
		minConfidence: 0.5,
		timeout:       2 * time.Minute,
		state:         StateIdle,
		updatedAt:     time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Result returns the last successfully extracted record.
func (o *Orchestrator) Result() (extract.Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result, o.hasResult
}

// View returns a snapshot of the observable state.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return View{
		State:      o.state,
		Busy:       o.busy,
		Result:     o.result,
		HasResult:  o.hasResult,
		LastError:  o.lastErr,
		LastScanID: o.lastScanID,
		UpdatedAt:  o.updatedAt,
	}
}

// StartCamera acquires the camera. Starting while a session is live
// restarts it; starting during a run is ignored.
func (o *Orchestrator) StartCamera(ctx context.Context) error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		o.logger.Debug("start camera ignored", "reason", "busy")
		return nil
	}
	o.busy = true
	o.mu.Unlock()

	_, err := o.camera.Start(ctx)

	o.mu.Lock()
	o.busy = false
	if err != nil {
		camErr := common.Kind(common.ErrCameraUnavailable, err)
		o.lastErr = camErr
		o.setStateLocked(StateIdle, nil)
		o.unlock()
		o.logger.Warn("camera unavailable", "error", err)
		o.notifier.Notify(ctx, notify.CameraUnavailable)
		return camErr
	}
	o.setStateLocked(StateCameraActive, nil)
	o.unlock()
	return nil
}

// StopCamera releases the camera. It is ignored during a run. Returns
// whether the camera was stopped.
func (o *Orchestrator) StopCamera() bool {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		o.logger.Debug("stop camera ignored", "reason", "busy")
		return false
	}
	o.camera.Stop()
	o.setStateLocked(StateIdle, nil)
	o.unlock()
	return true
}

// Process runs snapshot, recognition and extraction once. It does nothing
// and returns started=false unless the camera is active and no run is in
// flight. On success the result is replaced, the camera stopped and the
// state returns to Idle. On failure the previous result is kept, the
// camera stays on and the state returns to CameraActive.
func (o *Orchestrator) Process(ctx context.Context) (extract.Record, bool, error) {
	o.mu.Lock()
	if o.busy || o.state != StateCameraActive {
		state := o.state
		o.mu.Unlock()
		o.logger.Debug("process ignored", "state", state)
		return extract.Record{}, false, nil
	}
	o.busy = true
	o.setStateLocked(StateProcessing, nil)
	o.unlock()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	source := "camera"
	if s := o.camera.Session(); s != nil {
		source = s.Device
	}
	scanID := o.startScan(ctx, source)
	ctx = common.WithScanID(ctx, scanID.String())
	start := time.Now()

	out, err := o.run(ctx)
	out.ScanID = scanID
	if err != nil {
		o.finishScan(ctx, out, err)

		o.mu.Lock()
		o.lastErr = err
		o.lastScanID = scanID
		o.setStateLocked(StateFailed, err)
		o.setStateLocked(StateCameraActive, nil)
		o.busy = false
		o.unlock()

		o.logger.Error("processing failed", "scan_id", scanID, "error", err, "duration_ms", time.Since(start).Milliseconds())
		o.notifier.Notify(ctx, notify.ProcessFailed)
		return extract.Record{}, true, err
	}
	o.finishScan(ctx, out, nil)

	o.mu.Lock()
	o.result = out.Record
	o.hasResult = true
	o.lastErr = nil
	o.lastScanID = scanID
	o.setStateLocked(StateCompleted, nil)
	o.unlock()

	o.camera.Stop()

	o.mu.Lock()
	o.setStateLocked(StateIdle, nil)
	o.busy = false
	o.unlock()

	o.logger.Info("processing finished",
		"scan_id", scanID,
		"missing", len(out.Record.Missing()),
		"confidence", out.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	o.notifier.Notify(ctx, notify.ExtractSucceeded)
	return out.Record, true, nil
}

func (o *Orchestrator) run(ctx context.Context) (Outcome, error) {
	img, err := o.camera.Snapshot(ctx)
	if err != nil {
		return Outcome{}, common.Kind(common.ErrNoFrameAvailable, err)
	}
	return o.recognize(ctx, img)
}

// recognize runs recognition then extraction on img.
func (o *Orchestrator) recognize(ctx context.Context, img capture.Image) (Outcome, error) {
	res, err := o.recognizer.RecognizeDetailed(ctx, img, o.lang)
	if err != nil {
		return Outcome{}, common.Kind(common.ErrRecognitionFailure, err)
	}
	rec := o.extractor(res.Text)
	return Outcome{
		Record:      rec,
		Text:        res.Text,
		Confidence:  res.Confidence,
		NeedsReview: len(rec.Missing()) > 0 || res.Confidence < o.minConfidence,
		Engine:      res.Engine,
	}, nil
}

// ProcessImage recognizes and extracts an already captured image without
// touching the state machine. The attempt is persisted like a camera run.
func (o *Orchestrator) ProcessImage(ctx context.Context, img capture.Image, source string) (Outcome, error) {
	scanID := o.startScan(ctx, source)
	ctx = common.WithScanID(ctx, scanID.String())

	out, err := o.recognize(ctx, img)
	out.ScanID = scanID
	o.finishScan(ctx, out, err)
	if err != nil {
		o.logger.Error("image processing failed", "scan_id", scanID, "source", source, "error", err)
		return out, err
	}
	o.logger.Info("image processed", "scan_id", scanID, "source", source, "missing", len(out.Record.Missing()))
	return out, nil
}

// FillForm publishes the current result. Without a result it does nothing
// and returns sent=false.
func (o *Orchestrator) FillForm(ctx context.Context) (bool, error) {
	rec, ok := o.Result()
	if !ok {
		o.logger.Debug("fill form ignored", "reason", "no result")
		return false, nil
	}
	if o.publisher == nil {
		o.notifier.Notify(ctx, notify.FillFailed)
		return false, fmt.Errorf("%w: no publisher configured", common.ErrPublishFailure)
	}
	if err := o.publisher.Publish(ctx, rec); err != nil {
		o.logger.Error("fill form failed", "error", err)
		o.notifier.Notify(ctx, notify.FillFailed)
		return false, common.Kind(common.ErrPublishFailure, err)
	}
	o.logger.Info("fill form sent")
	o.notifier.Notify(ctx, notify.FillSucceeded)
	return true, nil
}

func (o *Orchestrator) startScan(ctx context.Context, source string) uuid.UUID {
	if o.scans == nil {
		return uuid.New()
	}
	s, err := o.scans.Start(ctx, source)
	if err != nil {
		o.logger.Warn("scan not persisted", "source", source, "error", err)
		return uuid.New()
	}
	return s.ID
}

func (o *Orchestrator) finishScan(ctx context.Context, out Outcome, runErr error) {
	if o.scans == nil {
		return
	}
	// the run context may already be cancelled
	ctx = context.WithoutCancel(ctx)
	var err error
	if runErr != nil {
		err = o.scans.FinishFailure(ctx, out.ScanID, runErr.Error())
	} else {
		err = o.scans.FinishSuccess(ctx, out.ScanID, repository.ScanResult{
			OCRText:     out.Text,
			Fields:      out.Record.Fields(),
			Confidence:  out.Confidence,
			NeedsReview: out.NeedsReview,
			Engine:      out.Engine,
		})
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		o.logger.Warn("scan result not persisted", "scan_id", out.ScanID, "error", err)
	}
}

// setStateLocked records a transition. Observers run on unlock.
func (o *Orchestrator) setStateLocked(to State, err error) {
	if o.state == to {
		return
	}
	t := Transition{From: o.state, To: to, At: time.Now(), Err: err}
	o.state = to
	o.updatedAt = t.At
	o.pending = append(o.pending, t)
	o.logger.Debug("state changed", "from", t.From, "to", t.To)
}

// unlock releases the mutex and delivers queued transitions.
func (o *Orchestrator) unlock() {
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()
	for _, t := range pending {
		for _, fn := range o.observers {
			fn(t)
		}
	}
}

