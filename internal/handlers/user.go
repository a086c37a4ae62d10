package handlers

import (
	"net/http"
	"strconv"

	"casino-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	ledger services.Ledger
}

func NewUserHandler(ledger services.Ledger) *UserHandler {
	return &UserHandler{ledger: ledger}
}

func (h *UserHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.ledger.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "Failed to get balance", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"wallet":  wallet.Response(),
	})
}

func (h *UserHandler) GetTransactions(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	txs, err := h.ledger.GetUserTransactions(c.Request.Context(), c.GetInt64("user_id"), limit)
	if err != nil {
		respondError(c, "Failed to get transactions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
