package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/assistant"
)

type ChatStreamer interface {
	Stream(ctx context.Context, history []assistant.Message, onData func(chunk []byte) error) error
}

type AssistantHandler struct {
	chat ChatStreamer
}

func NewAssistantHandler(chat ChatStreamer) *AssistantHandler {
	return &AssistantHandler{chat: chat}
}

type chatRequest struct {
	Messages []assistant.Message `json:"messages" binding:"required"`
}

// Chat relays the gateway's SSE stream. Errors before the first chunk are
// mapped to JSON responses; after that the stream is simply ended.
func (h *AssistantHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	started := false
	err := h.chat.Stream(c.Request.Context(), req.Messages, func(chunk []byte) error {
		if !started {
			started = true
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
		}
		if _, err := c.Writer.Write(append(append([]byte("data: "), chunk...), '\n', '\n')); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})

	if !started {
		if err == nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "empty_stream"})
			return
		}
		writeError(c, err)
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		_ = c.Error(err)
		return
	}
	_, _ = c.Writer.Write([]byte("data: [DONE]\n\n"))
	c.Writer.Flush()
}
