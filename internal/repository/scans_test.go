package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestRepo(t *testing.T) (*scanRepo, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewScanRepository(openTestDB(t), nil).(*scanRepo)
	r.now = c.now
	return r, c
}

func TestOpen_SQLite(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, dialect.SQLite, db.Dialect)
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
	require.NoError(t, db.Migrate(context.Background()), "migrations are repeatable")
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres("postgres://u:p@localhost:5432/fichas"))
	assert.True(t, IsPostgres("postgresql://localhost/fichas"))
	assert.False(t, IsPostgres("./data/fichas.db"))
	assert.False(t, IsPostgres(":memory:"))
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(common.DatabaseConfig{DSN: "x.db", MaxConns: 3, DialTimeout: time.Second})
	assert.Equal(t, "x.db", cfg.DSN)
	assert.Equal(t, int32(3), cfg.MaxConns)
	assert.Equal(t, time.Second, cfg.DialTimeout)
}

func TestScanRepository_StartAndFinishSuccess(t *testing.T) {
	ctx := context.Background()
	r, c := newTestRepo(t)

	s, err := r.Start(ctx, "file:ficha.png")
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusRunning, s.Status)

	got, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "file:ficha.png", got.Source)
	assert.False(t, got.Finished())
	assert.Nil(t, got.FinishedAt)
	assert.True(t, got.StartedAt.Equal(c.t))

	c.t = c.t.Add(1500 * time.Millisecond)
	fields := map[string]string{"nome": "Joao", "cpf": "111.222.333-44"}
	require.NoError(t, r.FinishSuccess(ctx, s.ID, ScanResult{
		OCRText:     "Nome: Joao",
		Fields:      fields,
		Confidence:  0.82,
		NeedsReview: false,
		Engine:      "tesseract",
	}))

	got, err = r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusOK, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(c.t))
	require.NotNil(t, got.DurationMS)
	assert.Equal(t, int64(1500), *got.DurationMS)
	assert.Equal(t, fields, got.Fields)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 0.82, *got.Confidence, 1e-5)
	require.NotNil(t, got.OCRText)
	assert.Equal(t, "Nome: Joao", *got.OCRText)
	require.NotNil(t, got.Engine)
	assert.Equal(t, "tesseract", *got.Engine)
	assert.False(t, got.NeedsReview)
	assert.Nil(t, got.ErrorMessage)
}

func TestScanRepository_FinishFailure(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	s, err := r.Start(ctx, "camera")
	require.NoError(t, err)
	require.NoError(t, r.FinishFailure(ctx, s.ID, "recognition failed"))

	got, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "recognition failed", *got.ErrorMessage)
	assert.True(t, got.NeedsReview)
	assert.Nil(t, got.Fields)
}

func TestScanRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	_, err := r.Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, common.ErrNotFound))

	err = r.FinishFailure(ctx, uuid.New(), "x")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestScanRepository_List(t *testing.T) {
	ctx := context.Background()
	r, c := newTestRepo(t)
	base := c.t

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		c.t = base.Add(time.Duration(i) * time.Hour)
		s, err := r.Start(ctx, "camera")
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	require.NoError(t, r.FinishSuccess(ctx, ids[1], ScanResult{Fields: map[string]string{"nome": "A"}}))
	require.NoError(t, r.FinishFailure(ctx, ids[2], "boom"))

	all, err := r.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, ids[3], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[3].ID)

	ok, err := r.List(ctx, ListFilter{Status: string(constants.ScanStatusOK)})
	require.NoError(t, err)
	require.Len(t, ok, 1)
	assert.Equal(t, ids[1], ok[0].ID)

	from, to := base.Add(time.Hour), base.Add(3*time.Hour)
	window, err := r.List(ctx, ListFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, ids[2], window[0].ID)
	assert.Equal(t, ids[1], window[1].ID)

	limited, err := r.List(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestTimeFormatSortsLexically(t *testing.T) {
	a := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	b := a.Add(time.Nanosecond)
	assert.Less(t, formatTime(a), formatTime(b))

	got, err := parseTime(formatTime(b))
	require.NoError(t, err)
	assert.True(t, got.Equal(b))

	loc := time.FixedZone("BRT", -3*3600)
	assert.Equal(t, formatTime(a), formatTime(a.In(loc)))
}
