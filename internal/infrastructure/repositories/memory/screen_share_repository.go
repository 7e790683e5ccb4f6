package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type MemoryScreenShareRepository struct {
	clock clockwork.Clock

	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.ScreenShareSession
	viewers  map[string]*domain.Viewer
	// byUser indexes named viewers: session -> user -> viewer id.
	byUser map[domain.SessionID]map[domain.UserID]string
}

func NewMemoryScreenShareRepository(clock clockwork.Clock) ports.ScreenShareRepository {
	return &MemoryScreenShareRepository{
		clock:    clock,
		sessions: make(map[domain.SessionID]*domain.ScreenShareSession),
		viewers:  make(map[string]*domain.Viewer),
		byUser:   make(map[domain.SessionID]map[domain.UserID]string),
	}
}

func (r *MemoryScreenShareRepository) CreateSession(ctx context.Context, session *domain.ScreenShareSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("session already exists: %s", session.ID)
	}
	c := *session
	r.sessions[session.ID] = &c
	return nil
}

func (r *MemoryScreenShareRepository) GetSession(ctx context.Context, id domain.SessionID) (*domain.ScreenShareSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	c := *session
	return &c, nil
}

func (r *MemoryScreenShareRepository) UpdateSession(ctx context.Context, session *domain.ScreenShareSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.sessions[session.ID]
	if !exists {
		return domain.ErrSessionNotFound
	}
	stored.Title = session.Title
	stored.Description = session.Description
	stored.Status = session.Status
	stored.IsPublic = session.IsPublic
	stored.MaxViewers = session.MaxViewers
	stored.EndedAt = session.EndedAt
	stored.UpdatedAt = session.UpdatedAt
	return nil
}

func (r *MemoryScreenShareRepository) ListSessions(ctx context.Context, filter ports.SessionFilter) ([]*domain.ScreenShareSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.ScreenShareSession{}
	for _, session := range r.sessions {
		if filter.Matches(session) {
			c := *session
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryScreenShareRepository) AdjustViewerCounts(ctx context.Context, id domain.SessionID, currentDelta, totalDelta int) (*domain.ScreenShareSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	session.CurrentViewers += currentDelta
	if session.CurrentViewers < 0 {
		session.CurrentViewers = 0
	}
	session.TotalViews += totalDelta
	c := *session
	return &c, nil
}

func (r *MemoryScreenShareRepository) ActivateViewer(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.Viewer, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; !exists {
		return nil, false, domain.ErrSessionNotFound
	}

	now := r.clock.Now()
	if userID != "" {
		if id, known := r.byUser[sessionID][userID]; known {
			viewer := r.viewers[id]
			if viewer.IsActive {
				c := *viewer
				return &c, false, nil
			}
			viewer.IsActive = true
			viewer.JoinedAt = now
			viewer.LeftAt = nil
			c := *viewer
			return &c, true, nil
		}
	}

	viewer := &domain.Viewer{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		UserID:    userID,
		IsActive:  true,
		JoinedAt:  now,
	}
	r.viewers[viewer.ID] = viewer
	if userID != "" {
		if r.byUser[sessionID] == nil {
			r.byUser[sessionID] = make(map[domain.UserID]string)
		}
		r.byUser[sessionID][userID] = viewer.ID
	}
	c := *viewer
	return &c, true, nil
}

func (r *MemoryScreenShareRepository) DeactivateViewer(ctx context.Context, sessionID domain.SessionID, req domain.LeaveRequest) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := req.ViewerID
	if req.UserID != "" {
		id = r.byUser[sessionID][req.UserID]
	}
	viewer, exists := r.viewers[id]
	if !exists || viewer.SessionID != sessionID || !viewer.IsActive {
		return false, nil
	}

	now := r.clock.Now()
	viewer.IsActive = false
	viewer.LeftAt = &now
	return true, nil
}

func (r *MemoryScreenShareRepository) DeactivateAllViewers(ctx context.Context, sessionID domain.SessionID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	count := 0
	for _, viewer := range r.viewers {
		if viewer.SessionID == sessionID && viewer.IsActive {
			viewer.IsActive = false
			left := now
			viewer.LeftAt = &left
			count++
		}
	}
	return count, nil
}
