package http

import (
	"net/http"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"
	"sportshub/internal/infrastructure/middleware"
	"sportshub/pkg/errors"
	"sportshub/pkg/validation"

	"github.com/gin-gonic/gin"
)

// RoomSizer reports how many realtime connections sit in a session room.
type RoomSizer interface {
	RoomSize(sessionID domain.SessionID) int
}

type ScreenShareHandler struct {
	sessions ports.ScreenShareService
	rooms    RoomSizer
}

func NewScreenShareHandler(sessions ports.ScreenShareService, rooms RoomSizer) *ScreenShareHandler {
	return &ScreenShareHandler{sessions: sessions, rooms: rooms}
}

// SetupRoutes mounts the routes; auth guards host-only routes and
// optionalAuth the viewer routes.
func (h *ScreenShareHandler) SetupRoutes(router gin.IRouter, auth, optionalAuth gin.HandlerFunc) {
	api := router.Group("/api/screen-share")
	{
		api.POST("/sessions", auth, h.CreateSession)
		api.GET("/sessions", h.ListSessions)
		api.GET("/sessions/:id", h.GetSession)
		api.PATCH("/sessions/:id", auth, h.UpdateSession)
		api.POST("/sessions/:id/end", auth, h.EndSession)
		api.DELETE("/sessions/:id", auth, h.EndSession)
		api.POST("/sessions/:id/join", optionalAuth, h.JoinSession)
		api.POST("/sessions/:id/leave", optionalAuth, h.LeaveSession)
		api.GET("/games/:gameId/sessions", h.GetGameSessions)
		api.GET("/my-sessions", auth, h.GetMySessions)
		api.GET("/ice-servers", h.GetICEServers)
	}
}

type CreateSessionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	GameID      string `json:"gameId"`
	IsPublic    *bool  `json:"isPublic"`
	MaxViewers  *int   `json:"maxViewers"`
}

type UpdateSessionRequest struct {
	Title       *string               `json:"title"`
	Description *string               `json:"description"`
	Status      *domain.SessionStatus `json:"status"`
	IsPublic    *bool                 `json:"isPublic"`
	MaxViewers  *int                  `json:"maxViewers"`
}

type LeaveSessionRequest struct {
	ViewerID string `json:"viewerId"`
}

type sessionView struct {
	*domain.ScreenShareSession
	LiveConnections int `json:"liveConnections"`
}

func sessionIDParam(c *gin.Context) (domain.SessionID, bool) {
	id := c.Param("id")
	if err := validation.ValidateIdentifier(id, "sessionId"); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return "", false
	}
	return domain.SessionID(id), true
}

func sessionsOrEmpty(sessions []*domain.ScreenShareSession) []*domain.ScreenShareSession {
	if sessions == nil {
		return []*domain.ScreenShareSession{}
	}
	return sessions
}

func (h *ScreenShareHandler) CreateSession(c *gin.Context) {
	host, _ := middleware.UserID(c)

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	input := domain.CreateSessionInput{
		Title:       req.Title,
		Description: req.Description,
		GameID:      req.GameID,
		IsPublic:    true,
	}
	if req.IsPublic != nil {
		input.IsPublic = *req.IsPublic
	}
	if req.MaxViewers != nil {
		if err := validation.ValidateMaxViewers(*req.MaxViewers); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
		input.MaxViewers = *req.MaxViewers
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), host, input)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, session, nil)
}

// ListSessions returns active public sessions, newest first.
func (h *ScreenShareHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.GetActiveSessions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, sessionsOrEmpty(sessions), nil)
}

func (h *ScreenShareHandler) GetSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	view := sessionView{ScreenShareSession: session}
	if h.rooms != nil {
		view.LiveConnections = h.rooms.RoomSize(id)
	}
	respond(c, http.StatusOK, view, nil)
}

func (h *ScreenShareHandler) UpdateSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	host, _ := middleware.UserID(c)

	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	session, err := h.sessions.UpdateSession(c.Request.Context(), id, host, domain.UpdateSessionInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		IsPublic:    req.IsPublic,
		MaxViewers:  req.MaxViewers,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, session, nil)
}

func (h *ScreenShareHandler) EndSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	host, _ := middleware.UserID(c)

	if _, err := h.sessions.EndSession(c.Request.Context(), id, host); err != nil {
		fail(c, err)
		return
	}
	statusOK(c, "Session ended successfully")
}

// JoinSession registers the caller as a viewer. Anonymous viewers are
// allowed and get a fresh viewer record each time.
func (h *ScreenShareHandler) JoinSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	userID, _ := middleware.UserID(c)

	result, err := h.sessions.JoinSession(c.Request.Context(), id, userID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result, nil)
}

func (h *ScreenShareHandler) LeaveSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	userID, _ := middleware.UserID(c)

	var req LeaveSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewInvalidInputError("invalid request format"))
			return
		}
	}
	if userID == "" && req.ViewerID == "" {
		c.Error(errors.NewInvalidInputError("viewerId is required for anonymous viewers"))
		return
	}

	err := h.sessions.LeaveSession(c.Request.Context(), id, domain.LeaveRequest{
		UserID:   userID,
		ViewerID: req.ViewerID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	statusOK(c, "Left session successfully")
}

func (h *ScreenShareHandler) GetGameSessions(c *gin.Context) {
	gameID := c.Param("gameId")
	if err := validation.ValidateIdentifier(gameID, "gameId"); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	sessions, err := h.sessions.GetSessionsForGame(c.Request.Context(), gameID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, sessionsOrEmpty(sessions), nil)
}

func (h *ScreenShareHandler) GetMySessions(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	sessions, err := h.sessions.GetUserSessions(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, sessionsOrEmpty(sessions), nil)
}

func (h *ScreenShareHandler) GetICEServers(c *gin.Context) {
	respond(c, http.StatusOK, h.sessions.ICEServers(), nil)
}
