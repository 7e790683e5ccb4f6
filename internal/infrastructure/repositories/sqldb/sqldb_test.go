package sqldb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"
	"sportshub/pkg/config"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"
)

var kickoff = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = config.StorageSQLite
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "sportshub.db")

	db, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = config.StorageMemory

	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestOpen_TracesStatements(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSyncer(exporter))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})

	repo := NewGormGameRepository(openTestDB(t), clockwork.NewFakeClockAt(kickoff))
	exporter.Reset()

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrGameNotFound)

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	assert.Equal(t, "db.query", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.String("db.table", "games"))
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
}

func TestGormGameRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(kickoff)
	repo := NewGormGameRepository(openTestDB(t), clock)

	period := 1
	data := domain.GameData{
		ExternalID: "m1",
		HomeTeam:   domain.Team{ExternalID: "57", Name: "Arsenal", Abbreviation: "ARS"},
		AwayTeam:   domain.Team{ExternalID: "61", Name: "Chelsea", Abbreviation: "CHE"},
		StartTime:  kickoff,
		Status:     domain.GameStatusScheduled,
	}
	created, res, err := repo.Upsert(ctx, "soccer", data)
	require.NoError(t, err)
	assert.True(t, res.Created)

	clock.Advance(10 * time.Minute)
	data.Status = domain.GameStatusInProgress
	data.Score = &domain.Score{Home: 0, Away: 1}
	data.Period = &period
	data.Clock = "10'"
	updated, res, err := repo.Upsert(ctx, "soccer", data)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, domain.UpsertResult{ScoreChanged: true, StatusChanged: true}, res)

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ARS", stored.HomeTeam.Abbreviation)
	require.NotNil(t, stored.Score)
	assert.Equal(t, 1, stored.Score.Away)
	require.NotNil(t, stored.Period)
	assert.Equal(t, 1, *stored.Period)
	assert.True(t, stored.UpdatedAt.Equal(kickoff.Add(10*time.Minute)))
	assert.True(t, stored.CreatedAt.Equal(kickoff))

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrGameNotFound)
}

func TestGormGameRepository_Queries(t *testing.T) {
	ctx := context.Background()
	repo := NewGormGameRepository(openTestDB(t), clockwork.NewFakeClockAt(kickoff))

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	for id, offset := range map[string]time.Duration{
		"morning":   9 * time.Hour,
		"evening":   19 * time.Hour,
		"tomorrow":  33 * time.Hour,
		"yesterday": -5 * time.Hour,
	} {
		status := domain.GameStatusScheduled
		if id == "evening" {
			status = domain.GameStatusInProgress
		}
		_, _, err := repo.Upsert(ctx, "soccer", domain.GameData{ExternalID: id, StartTime: day.Add(offset), Status: status})
		require.NoError(t, err)
	}

	today, err := repo.ListBetween(ctx, "soccer", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, today, 2)
	assert.Equal(t, "morning", today[0].ExternalID)
	assert.Equal(t, "evening", today[1].ExternalID)

	live, err := repo.ListByStatus(ctx, "soccer", domain.GameStatusInProgress)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "evening", live[0].ExternalID)

	next, err := repo.FindFirstFrom(ctx, "soccer", day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "tomorrow", next.ExternalID)

	_, err = repo.FindFirstFrom(ctx, "nba", day)
	assert.ErrorIs(t, err, domain.ErrGameNotFound)
}

func TestGormScreenShareRepository_Sessions(t *testing.T) {
	ctx := context.Background()
	repo := NewGormScreenShareRepository(openTestDB(t), clockwork.NewFakeClockAt(kickoff))

	older := &domain.ScreenShareSession{
		ID: "s1", HostUserID: "alice", GameID: "g1", Title: "Derby", Status: domain.SessionStatusActive,
		IsPublic: true, MaxViewers: 2, CreatedAt: kickoff, UpdatedAt: kickoff,
	}
	newer := &domain.ScreenShareSession{
		ID: "s2", HostUserID: "bob", Title: "Private", Status: domain.SessionStatusActive,
		MaxViewers: 2, CreatedAt: kickoff.Add(time.Hour), UpdatedAt: kickoff.Add(time.Hour),
	}
	require.NoError(t, repo.CreateSession(ctx, older))
	require.NoError(t, repo.CreateSession(ctx, newer))

	session, err := repo.AdjustViewerCounts(ctx, "s1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, session.CurrentViewers)
	session, err = repo.AdjustViewerCounts(ctx, "s1", -4, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, session.CurrentViewers)
	assert.Equal(t, 1, session.TotalViews)
	_, err = repo.AdjustViewerCounts(ctx, "missing", 1, 0)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	ended := kickoff.Add(2 * time.Hour)
	session.Status = domain.SessionStatusEnded
	session.EndedAt = &ended
	session.TotalViews = 0
	require.NoError(t, repo.UpdateSession(ctx, session))
	stored, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusEnded, stored.Status)
	assert.Equal(t, 1, stored.TotalViews)
	require.NotNil(t, stored.EndedAt)

	all, err := repo.ListSessions(ctx, ports.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.SessionID("s2"), all[0].ID)

	forGame, err := repo.ListSessions(ctx, ports.SessionFilter{GameID: "g1", PublicOnly: true})
	require.NoError(t, err)
	require.Len(t, forGame, 1)

	active, err := repo.ListSessions(ctx, ports.SessionFilter{Status: domain.SessionStatusActive, CreatedBefore: kickoff.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.SessionID("s2"), active[0].ID)

	_, err = repo.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, repo.UpdateSession(ctx, &domain.ScreenShareSession{ID: "missing"}), domain.ErrSessionNotFound)
}

func TestGormScreenShareRepository_Viewers(t *testing.T) {
	ctx := context.Background()
	repo := NewGormScreenShareRepository(openTestDB(t), clockwork.NewFakeClockAt(kickoff))
	require.NoError(t, repo.CreateSession(ctx, &domain.ScreenShareSession{
		ID: "s1", HostUserID: "host", Title: "t", Status: domain.SessionStatusActive, CreatedAt: kickoff,
	}))

	named, activated, err := repo.ActivateViewer(ctx, "s1", "fan")
	require.NoError(t, err)
	assert.True(t, activated)
	_, activated, err = repo.ActivateViewer(ctx, "s1", "fan")
	require.NoError(t, err)
	assert.False(t, activated)

	anon, _, err := repo.ActivateViewer(ctx, "s1", "")
	require.NoError(t, err)
	other, _, err := repo.ActivateViewer(ctx, "s1", "")
	require.NoError(t, err)
	assert.NotEqual(t, anon.ID, other.ID)

	left, err := repo.DeactivateViewer(ctx, "s1", domain.LeaveRequest{UserID: "fan"})
	require.NoError(t, err)
	assert.True(t, left)
	left, err = repo.DeactivateViewer(ctx, "s1", domain.LeaveRequest{UserID: "fan"})
	require.NoError(t, err)
	assert.False(t, left)
	left, err = repo.DeactivateViewer(ctx, "s1", domain.LeaveRequest{ViewerID: anon.ID})
	require.NoError(t, err)
	assert.True(t, left)

	count, err := repo.DeactivateAllViewers(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rejoined, activated, err := repo.ActivateViewer(ctx, "s1", "fan")
	require.NoError(t, err)
	assert.True(t, activated)
	assert.Equal(t, named.ID, rejoined.ID)

	_, _, err = repo.ActivateViewer(ctx, "missing", "fan")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
