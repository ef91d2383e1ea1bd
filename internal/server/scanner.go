package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/export"
	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
	"github.com/joseph-ayodele/fichas-scanner/internal/pipeline"
	"github.com/joseph-ayodele/fichas-scanner/internal/publish"
	"github.com/joseph-ayodele/fichas-scanner/internal/repository"
)

// Pipeline is the part of the orchestrator the service drives.
type Pipeline interface {
	StartCamera(ctx context.Context) error
	StopCamera() bool
	Process(ctx context.Context) (extract.Record, bool, error)
	FillForm(ctx context.Context) (bool, error)
	View() pipeline.View
}

type ScannerService struct {
	pipeline  Pipeline
	hub       *publish.Hub
	scans     repository.ScanRepository
	exporter  *export.Service
	extractor extract.Extractor
	logger    *slog.Logger
}

type ServiceOption func(*ScannerService)

// WithScans enables ListScans, GetScan and ExportScans.
func WithScans(scans repository.ScanRepository) ServiceOption {
	return func(s *ScannerService) {
		s.scans = scans
	}
}

func WithHub(h *publish.Hub) ServiceOption {
	return func(s *ScannerService) {
		s.hub = h
	}
}

func WithExtractor(fn extract.Extractor) ServiceOption {
	return func(s *ScannerService) {
		if fn != nil {
			s.extractor = fn
		}
	}
}

func NewScannerService(p Pipeline, logger *slog.Logger, opts ...ServiceOption) *ScannerService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ScannerService{pipeline: p, extractor: extract.Extract, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.scans != nil {
		s.exporter = export.NewService(s.scans, logger)
	}
	return s
}

func (s *ScannerService) StartCamera(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.pipeline.StartCamera(ctx); err != nil {
		s.logger.Warn("start camera failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return s.state()
}

func (s *ScannerService) StopCamera(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.pipeline.StopCamera()), nil
}

func (s *ScannerService) Capture(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	rec, started, err := s.pipeline.Process(ctx)
	if err != nil {
		s.logger.Warn("capture failed", "error", err)
		return nil, common.ToStatus(err)
	}
	out := map[string]any{"started": started}
	if started {
		out["record"] = recordValue(rec)
		out["missing"] = stringsValue(rec.Missing())
	}
	return structpb.NewStruct(out)
}

func (s *ScannerService) FillForm(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	sent, err := s.pipeline.FillForm(ctx)
	if err != nil {
		s.logger.Warn("fill form failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return wrapperspb.Bool(sent), nil
}

func (s *ScannerService) GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return s.state()
}

func (s *ScannerService) state() (*structpb.Struct, error) {
	st, err := viewStruct(s.pipeline.View())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode state: %v", err)
	}
	return st, nil
}

func (s *ScannerService) Extract(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	rec := s.extractor(req.GetValue())
	return structpb.NewStruct(recordValue(rec))
}

func (s *ScannerService) ListScans(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.scans == nil {
		return nil, status.Error(codes.FailedPrecondition, "scan history is disabled")
	}
	f, err := parseFilter(req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("listing scans", "status", f.Status, "from", f.From, "to", f.To, "limit", f.Limit)
	scans, err := s.scans.List(ctx, f)
	if err != nil {
		s.logger.Error("failed to list scans", "error", err)
		return nil, common.ToStatus(err)
	}

	out := make([]any, 0, len(scans))
	for _, sc := range scans {
		out = append(out, scanValue(sc))
	}
	return structpb.NewStruct(map[string]any{"scans": out})
}

func (s *ScannerService) GetScan(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s.scans == nil {
		return nil, status.Error(codes.FailedPrecondition, "scan history is disabled")
	}
	id, err := uuid.Parse(strings.TrimSpace(req.GetValue()))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "id must be a UUID")
	}
	sc, err := s.scans.Get(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(scanValue(sc))
}

func (s *ScannerService) ExportScans(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	if s.exporter == nil {
		return nil, status.Error(codes.FailedPrecondition, "scan history is disabled")
	}
	f, err := parseFilter(req)
	if err != nil {
		return nil, err
	}
	xlsx, err := s.exporter.ExportScansXLSX(ctx, f)
	if err != nil {
		s.logger.Error("export xlsx failed", "error", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(xlsx), nil
}

// Subscribe streams every hand-off message published after the call.
func (s *ScannerService) Subscribe(_ *emptypb.Empty, stream grpc.ServerStream) error {
	if s.hub == nil {
		return status.Error(codes.FailedPrecondition, "hand-off channel is disabled")
	}
	sub, err := s.hub.Subscribe(0)
	if err != nil {
		return common.ToStatus(err)
	}
	defer sub.Close()
	s.logger.Info("subscriber attached", "subscription_id", sub.ID)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("subscriber detached", "subscription_id", sub.ID)
			return nil
		case msg, ok := <-sub.C:
			if !ok {
				return nil
			}
			st, err := messageStruct(msg)
			if err != nil {
				return status.Errorf(codes.Internal, "encode message: %v", err)
			}
			if err := stream.SendMsg(st); err != nil {
				return err
			}
		}
	}
}

// parseFilter reads {status, from, to, limit}. Dates are YYYY-MM-DD and both
// ends are inclusive days.
func parseFilter(req *structpb.Struct) (repository.ListFilter, error) {
	m := req.AsMap()
	str := func(k string) string {
		v, _ := m[k].(string)
		return strings.TrimSpace(v)
	}

	var f repository.ListFilter
	f.Status = strings.ToUpper(str("status"))
	if f.Status != "" {
		v := common.NewValidator().Field("status", f.Status, common.OneOf(constants.ScanStatuses...))
		if err := common.ValidateAndReturnError(v); err != nil {
			return f, err
		}
	}
	if fd := str("from"); fd != "" {
		from, err := parseYMD(fd)
		if err != nil {
			return f, status.Errorf(codes.InvalidArgument, "from invalid (YYYY-MM-DD): %v", err)
		}
		f.From = &from
	}
	if td := str("to"); td != "" {
		to, err := parseYMD(td)
		if err != nil {
			return f, status.Errorf(codes.InvalidArgument, "to invalid (YYYY-MM-DD): %v", err)
		}
		end := to.AddDate(0, 0, 1)
		f.To = &end
	}
	if n, ok := m["limit"].(float64); ok {
		if n < 0 {
			return f, status.Error(codes.InvalidArgument, "limit must not be negative")
		}
		f.Limit = int(n)
	}
	return f, nil
}

func parseYMD(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

func stringsValue(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
