package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"casino-backend/internal/confidential"
	"casino-backend/internal/models"
	"casino-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	gameEngine *services.GameEngine
	store      services.SessionStore
}

func NewGameHandler(gameEngine *services.GameEngine, store services.SessionStore) *GameHandler {
	return &GameHandler{
		gameEngine: gameEngine,
		store:      store,
	}
}

func (h *GameHandler) ClusterKey(c *gin.Context) {
	c.JSON(http.StatusOK, models.ClusterKeyResponse{PublicKey: h.gameEngine.ClusterKey()})
}

func (h *GameHandler) BeginGame(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.BeginGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.gameEngine.BeginGame(c.Request.Context(), userID, &req)
	if err != nil {
		respondStepError(c, "Failed to start game", resp, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

func (h *GameHandler) GetGame(c *gin.Context) {
	session, err := h.gameEngine.GetGame(c.Request.Context(), c.Param("id"), c.GetInt64("user_id"))
	if err != nil {
		respondError(c, "Failed to load game", err)
		return
	}
	c.JSON(http.StatusOK, session.View())
}

type stepFunc func(ctx context.Context, gameID string, userID int64) (*models.StepResponse, error)

// Step adapts an engine request to a route. Accepted steps answer 202; the
// result arrives later over the websocket or by polling the game.
func (h *GameHandler) Step(fn stepFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := fn(c.Request.Context(), c.Param("id"), c.GetInt64("user_id"))
		if err != nil {
			respondStepError(c, "Step rejected", resp, err)
			return
		}
		c.JSON(http.StatusAccepted, resp)
	}
}

// respondStepError reports a step that was not dispatched. When the game
// exists its id is returned with the path to retry the step.
func respondStepError(c *gin.Context, message string, resp *models.StepResponse, err error) {
	if resp == nil || !errors.Is(err, services.ErrDispatchFailed) {
		respondError(c, message, err)
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error":   message,
		"details": err.Error(),
		"game_id": resp.GameID,
		"step":    resp.Step,
		"state":   resp.State,
		"retry":   retryPath(resp),
	})
}

func retryPath(resp *models.StepResponse) string {
	action := map[models.Step]string{
		models.StepDeal:       "deal",
		models.StepHit:        "hit",
		models.StepDoubleDown: "double",
		models.StepStand:      "stand",
		models.StepDealerPlay: "dealer",
		models.StepResolve:    "resolve",
	}[resp.Step]
	return "/api/blackjack/games/" + resp.GameID + "/" + action
}

func (h *GameHandler) DealerPlay(c *gin.Context) {
	var req models.DealerPlayRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request",
				"details": err.Error(),
			})
			return
		}
	}
	var nonce confidential.Nonce
	if req.ClientNonce != "" {
		if err := nonce.UnmarshalText([]byte(req.ClientNonce)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid client nonce",
				"details": err.Error(),
			})
			return
		}
	}

	h.Step(func(ctx context.Context, gameID string, userID int64) (*models.StepResponse, error) {
		return h.gameEngine.DealerPlay(ctx, gameID, userID, nonce)
	})(c)
}

func (h *GameHandler) GetActiveGames(c *gin.Context) {
	games, err := h.store.GetUserActiveGames(c.Request.Context(), c.GetInt64("user_id"))
	if err != nil {
		respondError(c, "Failed to get active games", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": views(games)})
}

func (h *GameHandler) GetGameHistory(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	games, err := h.store.GetGameHistory(c.Request.Context(), c.GetInt64("user_id"), limit)
	if err != nil {
		respondError(c, "Failed to get game history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": views(games)})
}

func views(games []*models.GameSession) []*models.GameView {
	out := make([]*models.GameView, 0, len(games))
	for _, g := range games {
		out = append(out, g.View())
	}
	return out
}
