package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mareon-hq/mareon-backend/internal/common"
	"github.com/mareon-hq/mareon-backend/internal/pubsub"
)

// WebhookHandler terminates push deliveries from the message broker.
//
// Response contract: 204 acknowledges (processed or intentionally dropped),
// 400 marks the envelope permanently unparseable, 500 asks the broker to
// redeliver with backoff.
type WebhookHandler struct {
	dispatcher *pubsub.Dispatcher
	logger     *slog.Logger
}

func NewWebhookHandler(dispatcher *pubsub.Dispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, logger: logger}
}

func (h *WebhookHandler) HandlePush(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read push body", "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	mc, err := pubsub.ParseEnvelope(body)
	if err != nil {
		h.logger.Error("invalid push payload", "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	h.logger.Info("push message received",
		"subscription", string(mc.Subscription), "message_id", mc.MessageID,
		"request_id", common.RequestIDFromContext(c.Request.Context()))

	res := h.dispatcher.Dispatch(c.Request.Context(), mc)
	if res.Outcome == pubsub.OutcomeRetry {
		h.logger.Error("dispatch failed, requesting redelivery",
			"message_id", mc.MessageID, "error", res.Err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}
