package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/entity"
)

const (
	scansTable = "scans"
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

var scanColumns = []string{
	"id", "source", "status", "engine", "started_at", "finished_at", "duration_ms",
	"ocr_text", "extracted_json", "confidence", "needs_review", "error_message",
}

// ScanResult is the outcome of a successful scan.
type ScanResult struct {
	OCRText     string
	Fields      map[string]string
	Confidence  float32
	NeedsReview bool
	Engine      string
}

// ListFilter narrows ListScans. Zero values mean no constraint.
type ListFilter struct {
	Status string
	From   *time.Time // inclusive
	To     *time.Time // exclusive
	Limit  int
}

type ScanRepository interface {
	Start(ctx context.Context, source string) (*entity.Scan, error)
	FinishSuccess(ctx context.Context, id uuid.UUID, res ScanResult) error
	FinishFailure(ctx context.Context, id uuid.UUID, message string) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Scan, error)
	List(ctx context.Context, f ListFilter) ([]*entity.Scan, error)
}

type scanRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewScanRepository(db *DB, log *slog.Logger) ScanRepository {
	if log == nil {
		log = slog.Default()
	}
	return &scanRepo{db: db, log: log, now: time.Now}
}

func (r *scanRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

func (r *scanRepo) Start(ctx context.Context, source string) (*entity.Scan, error) {
	s := &entity.Scan{
		ID:        uuid.New(),
		Source:    source,
		Status:    constants.ScanStatusRunning,
		StartedAt: r.now().UTC(),
	}
	q, args := r.builder().Insert(scansTable).
		Columns("id", "source", "status", "started_at", "needs_review").
		Values(s.ID.String(), s.Source, string(s.Status), formatTime(s.StartedAt), false).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("scan start failed", "source", source, "err", err)
		return nil, common.Kind(common.ErrDatabase, err)
	}
	r.log.Info("scan started", "scan_id", s.ID, "source", source)
	return s, nil
}

func (r *scanRepo) FinishSuccess(ctx context.Context, id uuid.UUID, res ScanResult) error {
	fields, err := json.Marshal(res.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	finished := r.now().UTC()
	u := r.builder().Update(scansTable).
		Set("status", string(constants.ScanStatusOK)).
		Set("finished_at", formatTime(finished)).
		Set("ocr_text", res.OCRText).
		Set("extracted_json", string(fields)).
		Set("confidence", float64(res.Confidence)).
		Set("needs_review", res.NeedsReview)
	if res.Engine != "" {
		u = u.Set("engine", res.Engine)
	}
	if err := r.finish(ctx, id, u, finished); err != nil {
		r.log.Error("scan finish(OK) failed", "scan_id", id, "err", err)
		return err
	}
	r.log.Info("scan finished (OK)", "scan_id", id, "needs_review", res.NeedsReview)
	return nil
}

func (r *scanRepo) FinishFailure(ctx context.Context, id uuid.UUID, message string) error {
	finished := r.now().UTC()
	u := r.builder().Update(scansTable).
		Set("status", string(constants.ScanStatusFailed)).
		Set("finished_at", formatTime(finished)).
		Set("error_message", message).
		Set("needs_review", true)
	if err := r.finish(ctx, id, u, finished); err != nil {
		r.log.Error("scan finish(FAILED) failed", "scan_id", id, "err", err)
		return err
	}
	r.log.Warn("scan finished (FAILED)", "scan_id", id, "error", message)
	return nil
}

// finish sets duration_ms from started_at and applies u to the row.
func (r *scanRepo) finish(ctx context.Context, id uuid.UUID, u *entsql.UpdateBuilder, finished time.Time) error {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	q, args := u.Set("duration_ms", finished.Sub(cur.StartedAt).Milliseconds()).
		Where(entsql.EQ("id", id.String())).
		Query()
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, q, args, &res); err != nil {
		return common.Kind(common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: scan %s", common.ErrNotFound, id)
	}
	return nil
}

func (r *scanRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Scan, error) {
	t := r.builder().Table(scansTable)
	q, args := r.builder().Select(scanColumns...).
		From(t).
		Where(entsql.EQ("id", id.String())).
		Query()
	scans, err := r.query(ctx, q, args)
	if err != nil {
		r.log.Error("failed to get scan", "scan_id", id, "error", err)
		return nil, err
	}
	if len(scans) == 0 {
		return nil, fmt.Errorf("%w: scan %s", common.ErrNotFound, id)
	}
	return scans[0], nil
}

func (r *scanRepo) List(ctx context.Context, f ListFilter) ([]*entity.Scan, error) {
	sel := r.builder().Select(scanColumns...).From(r.builder().Table(scansTable))

	var preds []*entsql.Predicate
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", f.Status))
	}
	if f.From != nil {
		preds = append(preds, entsql.GTE("started_at", formatTime(*f.From)))
	}
	if f.To != nil {
		preds = append(preds, entsql.LT("started_at", formatTime(*f.To)))
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	sel = sel.OrderBy(entsql.Desc("started_at"))
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}

	q, args := sel.Query()
	scans, err := r.query(ctx, q, args)
	if err != nil {
		r.log.Error("failed to list scans", "status", f.Status, "error", err)
		return nil, err
	}
	return scans, nil
}

func (r *scanRepo) query(ctx context.Context, q string, args []any) ([]*entity.Scan, error) {
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		return nil, common.Kind(common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Scan
	for rows.Next() {
		s, err := scanRow(&rows)
		if err != nil {
			return nil, common.Kind(common.ErrDatabase, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Kind(common.ErrDatabase, err)
	}
	return out, nil
}

func scanRow(rows *entsql.Rows) (*entity.Scan, error) {
	var (
		id, source, status, started               string
		engine, finished, ocrText, fields, errMsg sql.NullString
		duration                                  sql.NullInt64
		confidence                                sql.NullFloat64
		needsReview                               bool
	)
	if err := rows.Scan(&id, &source, &status, &engine, &started, &finished, &duration,
		&ocrText, &fields, &confidence, &needsReview, &errMsg); err != nil {
		return nil, err
	}

	s := &entity.Scan{
		Source:      source,
		Status:      constants.ScanStatus(status),
		NeedsReview: needsReview,
	}
	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("scan id %q: %w", id, err)
	}
	if s.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return nil, err
		}
		s.FinishedAt = &t
	}
	if fields.Valid && fields.String != "" {
		if err := json.Unmarshal([]byte(fields.String), &s.Fields); err != nil {
			return nil, fmt.Errorf("scan %s fields: %w", id, err)
		}
	}
	s.Engine = nullString(engine)
	s.OCRText = nullString(ocrText)
	s.ErrorMessage = nullString(errMsg)
	if duration.Valid {
		d := duration.Int64
		s.DurationMS = &d
	}
	if confidence.Valid {
		c := float32(confidence.Float64)
		s.Confidence = &c
	}
	return s, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
