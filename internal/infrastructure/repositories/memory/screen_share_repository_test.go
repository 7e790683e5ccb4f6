package memory

import (
	"context"
	"testing"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(id domain.SessionID, host domain.UserID, created time.Time) *domain.ScreenShareSession {
	return &domain.ScreenShareSession{
		ID:         id,
		HostUserID: host,
		Title:      "Watch party " + string(id),
		Status:     domain.SessionStatusActive,
		IsPublic:   true,
		MaxViewers: 10,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestMemoryScreenShareRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryScreenShareRepository(clockwork.NewFakeClockAt(kickoff))

	require.NoError(t, repo.CreateSession(ctx, newSession("s1", "host", kickoff)))
	assert.Error(t, repo.CreateSession(ctx, newSession("s1", "host", kickoff)))

	session, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("host"), session.HostUserID)

	_, err = repo.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryScreenShareRepository_UpdateKeepsCounters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryScreenShareRepository(clockwork.NewFakeClockAt(kickoff))
	require.NoError(t, repo.CreateSession(ctx, newSession("s1", "host", kickoff)))
	_, err := repo.AdjustViewerCounts(ctx, "s1", 3, 3)
	require.NoError(t, err)

	session, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	session.Title = "Renamed"
	session.CurrentViewers = 0
	require.NoError(t, repo.UpdateSession(ctx, session))

	stored, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Equal(t, 3, stored.CurrentViewers)

	assert.ErrorIs(t, repo.UpdateSession(ctx, newSession("missing", "host", kickoff)), domain.ErrSessionNotFound)
}

func TestMemoryScreenShareRepository_ListSessions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryScreenShareRepository(clockwork.NewFakeClockAt(kickoff))

	older := newSession("older", "alice", kickoff)
	newer := newSession("newer", "bob", kickoff.Add(time.Hour))
	private := newSession("private", "alice", kickoff.Add(2*time.Hour))
	private.IsPublic = false
	ended := newSession("ended", "alice", kickoff.Add(3*time.Hour))
	ended.Status = domain.SessionStatusEnded
	for _, s := range []*domain.ScreenShareSession{older, newer, private, ended} {
		require.NoError(t, repo.CreateSession(ctx, s))
	}

	active, err := repo.ListSessions(ctx, ports.SessionFilter{Status: domain.SessionStatusActive, PublicOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, domain.SessionID("newer"), active[0].ID)
	assert.Equal(t, domain.SessionID("older"), active[1].ID)

	mine, err := repo.ListSessions(ctx, ports.SessionFilter{HostUserID: "alice", Limit: 2})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, domain.SessionID("ended"), mine[0].ID)

	stale, err := repo.ListSessions(ctx, ports.SessionFilter{CreatedBefore: kickoff.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, domain.SessionID("older"), stale[0].ID)
}

func TestMemoryScreenShareRepository_AdjustViewerCountsClampsAtZero(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryScreenShareRepository(clockwork.NewFakeClockAt(kickoff))
	require.NoError(t, repo.CreateSession(ctx, newSession("s1", "host", kickoff)))

	session, err := repo.AdjustViewerCounts(ctx, "s1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, session.CurrentViewers)
	assert.Equal(t, 1, session.TotalViews)

	session, err = repo.AdjustViewerCounts(ctx, "s1", -5, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, session.CurrentViewers)
	assert.Equal(t, 1, session.TotalViews)

	_, err = repo.AdjustViewerCounts(ctx, "missing", 1, 1)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryScreenShareRepository_NamedViewerLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(kickoff)
	repo := NewMemoryScreenShareRepository(clock)
	require.NoError(t, repo.CreateSession(ctx, newSession("s1", "host", kickoff)))

	viewer, activated, err := repo.ActivateViewer(ctx, "s1", "fan")
	require.NoError(t, err)
	assert.True(t, activated)
	assert.True(t, viewer.IsActive)

	again, activated, err := repo.ActivateViewer(ctx, "s1", "fan")
	require.NoError(t, err)
	assert.False(t, activated)
	assert.Equal(t, viewer.ID, again.ID)

	left, err := repo.DeactivateViewer(ctx, "s1", domain.LeaveRequest{UserID: "fan"})
	require.NoError(t, err)
	assert.True(t, left)

	left, err = repo.DeactivateViewer(ctx, "s1", domain.LeaveRequest{UserID: "fan"})
	require.NoError(t, err)
	assert.False(t, left)

	clock.Advance(time.Minute)
	rejoined, activated, err := repo.ActivateViewer(ctx, "s1", "fan")
	require.NoError(t, err)
	assert.True(t, activated)
	assert.Equal(t, viewer.ID, rejoined.ID)
	assert.Nil(t, rejoined.LeftAt)
	assert.Equal(t, kickoff.Add(time.Minute), rejoined.JoinedAt)
}

func TestMemoryScreenShareRepository_AnonymousViewersAreDistinct(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryScreenShareRepository(clockwork.NewFakeClockAt(kickoff))
	require.NoError(t, repo.CreateSession(ctx, newSession("s1", "host", kickoff)))

	first, _, err := repo.ActivateViewer(ctx, "s1", "")
	require.NoError(t, err)
	second, _, err := repo.ActivateViewer(ctx, "s1", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	left, err := repo.DeactivateViewer(ctx, "s1", domain.LeaveRequest{ViewerID: first.ID})
	require.NoError(t, err)
	assert.True(t, left)

	left, err = repo.DeactivateViewer(ctx, "other", domain.LeaveRequest{ViewerID: second.ID})
	require.NoError(t, err)
	assert.False(t, left)

	count, err := repo.DeactivateAllViewers(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryScreenShareRepository_ActivateUnknownSession(t *testing.T) {
	repo := NewMemoryScreenShareRepository(clockwork.NewFakeClock())

	_, _, err := repo.ActivateViewer(context.Background(), "missing", "fan")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
