package handlers

import (
	"context"
	"errors"
	"net/http"

	"casino-backend/internal/confidential"
	"casino-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RecordReader interface {
	ReadRecord(ctx context.Context, key string) ([]byte, error)
}

// CallbackHandler serves the compute service: it reads session records and
// delivers settlements.
type CallbackHandler struct {
	settler confidential.SettlementHandler
	records RecordReader
	log     *logrus.Entry
}

func NewCallbackHandler(settler confidential.SettlementHandler, records RecordReader, log *logrus.Entry) *CallbackHandler {
	return &CallbackHandler{settler: settler, records: records, log: log}
}

func (h *CallbackHandler) Settle(c *gin.Context) {
	var s confidential.Settlement
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid settlement",
			"details": err.Error(),
		})
		return
	}
	if s.Handle != c.Param("handle") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Handle mismatch"})
		return
	}

	err := h.settler.Settle(c.Request.Context(), s)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"settled": true})
	case errors.Is(err, services.ErrComputationAborted),
		errors.Is(err, services.ErrConsistency),
		errors.Is(err, services.ErrPayoutTransfer):
		// The step was released; the service must not redeliver.
		h.log.WithError(err).WithField("handle", s.Handle).Warn("settlement rejected")
		c.JSON(http.StatusOK, gin.H{"settled": false, "error": err.Error()})
	default:
		respondError(c, "Settlement failed", err)
	}
}

func (h *CallbackHandler) GetRecord(c *gin.Context) {
	data, err := h.records.ReadRecord(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, "Failed to read record", err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}
