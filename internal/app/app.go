// Package app wires configuration into a running scanner: storage, capture,
// recognition, hand-off and the orchestrator.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/joseph-ayodele/fichas-scanner/internal/async"
	"github.com/joseph-ayodele/fichas-scanner/internal/capture"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/notify"
	"github.com/joseph-ayodele/fichas-scanner/internal/ocr"
	"github.com/joseph-ayodele/fichas-scanner/internal/pipeline"
	"github.com/joseph-ayodele/fichas-scanner/internal/publish"
	"github.com/joseph-ayodele/fichas-scanner/internal/repository"
	"github.com/joseph-ayodele/fichas-scanner/internal/runner"
	"github.com/joseph-ayodele/fichas-scanner/internal/server"
)

// App holds every long-lived component of a scanner process.
type App struct {
	Config       *common.Config
	Logger       *slog.Logger
	DB           *repository.DB
	Scans        repository.ScanRepository
	Runner       runner.Runner
	Camera       *capture.Controller
	Engine       ocr.Engine
	Recognizer   *ocr.Adapter
	Hub          *publish.Hub
	Orchestrator *pipeline.Orchestrator
}

type options struct {
	device     capture.Device
	engine     ocr.Engine
	runner     runner.Runner
	notifiers  []notify.Notifier
	observers  []pipeline.Observer
	publishers []publish.Publisher
	noHistory  bool
}

type Option func(*options)

// WithDevice replaces the configured capture device.
func WithDevice(d capture.Device) Option {
	return func(o *options) { o.device = d }
}

// WithEngine replaces the configured OCR engine.
func WithEngine(e ocr.Engine) Option {
	return func(o *options) { o.engine = e }
}

func WithRunner(r runner.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithNotifier adds a notice sink next to the log notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifiers = append(o.notifiers, n) }
}

func WithObserver(fn pipeline.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, fn) }
}

// WithPublisher adds a hand-off target next to the hub.
func WithPublisher(p publish.Publisher) Option {
	return func(o *options) { o.publishers = append(o.publishers, p) }
}

// WithoutHistory skips the database; scans are not persisted.
func WithoutHistory() Option {
	return func(o *options) { o.noHistory = true }
}

// New builds an App from cfg. Close releases what it opened.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if !o.noHistory {
		db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return nil, err
		}
		a.DB = db
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		a.Scans = repository.NewScanRepository(db, logger)
	}

	a.Runner = o.runner
	if a.Runner == nil {
		a.Runner = runner.NewExecRunner(logger)
	}

	device := o.device
	if device == nil {
		d, err := capture.NewDevice(cfg.Capture, a.Runner, logger)
		if err != nil {
			return nil, err
		}
		device = d
	}
	a.Camera = capture.NewController(device, capture.Config{JPEGQuality: cfg.Capture.JPEGQuality}, logger)

	a.Engine = o.engine
	if a.Engine == nil {
		e, err := ocr.NewEngine(cfg.OCR, a.Runner, logger)
		if err != nil {
			return nil, err
		}
		a.Engine = e
	}
	a.Recognizer = ocr.NewAdapter(a.Engine, ocr.AdapterConfig(cfg.OCR), logger)

	a.Hub = publish.NewHub(cfg.Pipeline.HubBuffer, logger)
	var pub publish.Publisher = a.Hub
	if len(o.publishers) > 0 {
		pub = append(publish.Multi{a.Hub}, o.publishers...)
	}

	notifier := notify.Multi{notify.NewLogNotifier(logger)}
	notifier = append(notifier, o.notifiers...)

	popts := []pipeline.Option{
		pipeline.WithPublisher(pub),
		pipeline.WithNotifier(notifier),
		pipeline.WithLanguage(cfg.OCR.Language),
		pipeline.WithMinConfidence(cfg.OCR.MinConfidence),
		pipeline.WithTimeout(cfg.Pipeline.Timeout),
	}
	if a.Scans != nil {
		popts = append(popts, pipeline.WithScanRepository(a.Scans))
	}
	for _, fn := range o.observers {
		popts = append(popts, pipeline.WithObserver(fn))
	}
	a.Orchestrator = pipeline.NewOrchestrator(a.Camera, a.Recognizer, logger, popts...)

	logger.Info("scanner ready",
		"device", device.Name(),
		"engine", a.Engine.Name(),
		"lang", cfg.OCR.Language,
		"history", a.Scans != nil,
	)
	ok = true
	return a, nil
}

// GRPCServer builds the gRPC server for this App.
func (a *App) GRPCServer() (*grpc.Server, *health.Server) {
	opts := []server.ServiceOption{server.WithHub(a.Hub)}
	if a.Scans != nil {
		opts = append(opts, server.WithScans(a.Scans))
	}
	svc := server.NewScannerService(a.Orchestrator, a.Logger, opts...)
	return server.NewGRPCServer(svc, a.Logger)
}

// BatchQueue returns a worker queue over the orchestrator's image path.
func (a *App) BatchQueue(opts ...async.Option) *async.ProcessorQueue {
	base := []async.Option{
		async.WithWorkers(a.Config.Pipeline.BatchWorkers),
		async.WithProcessTimeout(a.Config.Pipeline.Timeout),
	}
	return async.NewProcessorQueue(a.Orchestrator, a.Logger, append(base, opts...)...)
}

// Close stops the camera and releases the hub and the database.
func (a *App) Close() {
	if a.Camera != nil {
		a.Camera.Stop()
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// HealthCheck pings the database when history is enabled.
func (a *App) HealthCheck(ctx context.Context) error {
	if a.DB == nil {
		return fmt.Errorf("%w: history disabled", common.ErrDatabase)
	}
	return a.DB.HealthCheck(ctx, a.Config.Database.DialTimeout)
}
