package http

import (
	"context"
	"net/http"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"
	"sportshub/internal/infrastructure/jobs"
	"sportshub/pkg/errors"
	"sportshub/pkg/validation"

	"github.com/gin-gonic/gin"
)

// PollTrigger runs a poll job on demand.
type PollTrigger interface {
	SportID() string
	Trigger(ctx context.Context, kind jobs.PollKind) (*jobs.PollResult, error)
}

type GameHandler struct {
	games  ports.GameService
	poller PollTrigger
}

// NewGameHandler builds the games routes. poller may be nil, in which case
// manual polls answer 503.
func NewGameHandler(games ports.GameService, poller PollTrigger) *GameHandler {
	return &GameHandler{games: games, poller: poller}
}

func (h *GameHandler) SetupRoutes(router gin.IRouter, auth gin.HandlerFunc) {
	api := router.Group("/api/games")
	{
		api.GET("/today/:sportId", h.GetTodaysGames)
		api.GET("/live/:sportId", h.GetLiveGames)
		api.GET("/:sportId", h.GetGames)
		api.POST("/:sportId/poll", auth, h.TriggerPoll)
	}
}

func sportID(c *gin.Context) (string, bool) {
	id := c.Param("sportId")
	if err := validation.ValidateIdentifier(id, "sportId"); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return "", false
	}
	return id, true
}

func (h *GameHandler) GetTodaysGames(c *gin.Context) {
	id, ok := sportID(c)
	if !ok {
		return
	}

	games, err := h.games.GetTodaysGames(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, orEmpty(games), gin.H{"count": len(games)})
}

func (h *GameHandler) GetLiveGames(c *gin.Context) {
	id, ok := sportID(c)
	if !ok {
		return
	}

	games, err := h.games.GetLiveGames(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, orEmpty(games), gin.H{"count": len(games)})
}

func orEmpty(games []*domain.Game) []*domain.Game {
	if games == nil {
		return []*domain.Game{}
	}
	return games
}

// GetGames returns today's and live games merged, today's first.
func (h *GameHandler) GetGames(c *gin.Context) {
	id, ok := sportID(c)
	if !ok {
		return
	}

	listing, err := h.games.GetGames(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, listing.Games, gin.H{
		"count": len(listing.Games),
		"breakdown": gin.H{
			"today": len(listing.Today),
			"live":  len(listing.Live),
		},
	})
}

// TriggerPoll runs ?type=live|daily (default live) for the poller's sport.
func (h *GameHandler) TriggerPoll(c *gin.Context) {
	id, ok := sportID(c)
	if !ok {
		return
	}
	if h.poller == nil {
		c.Error(errors.NewServiceUnavailableError("polling is disabled"))
		return
	}
	if id != h.poller.SportID() {
		c.Error(errors.NewNotFoundError("poller for sport " + id))
		return
	}

	kind, err := jobs.ParsePollKind(c.DefaultQuery("type", string(jobs.PollLive)))
	if err != nil {
		fail(c, err)
		return
	}

	result, err := h.poller.Trigger(c.Request.Context(), kind)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result, nil)
}
