package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/cache"
	"github.com/JassinAlSafe/gamerfie-sub001/config"
	mw "github.com/JassinAlSafe/gamerfie-sub001/middleware"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const keepaliveInterval = 25 * time.Second

// Handler streams a viewer's feed change notifications over Server-Sent
// Events. EventSource cannot set headers, so the token rides a query param.
type Handler struct {
	pubsub cache.PubSub
	kv     cache.Cache
	sec    config.SecurityConfig
	logger *zap.Logger
}

// NewHandler creates an SSE Handler.
func NewHandler(pubsub cache.PubSub, kv cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, kv: kv, sec: sec, logger: logger}
}

// Stream handles GET /api/sse?token=.
func (h *Handler) Stream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := mw.ParseToken(token, h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	exists, err := h.kv.Exists(checkCtx, "session:"+token)
	cancel()
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}
	userID := claims.UserID

	msgCh, unsub, err := h.pubsub.Subscribe(c.Request.Context(), notify.FeedChannel(userID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.Flush()

	h.logger.Info("sse stream opened", zap.Int64("user_id", userID))
	defer h.logger.Info("sse stream closed", zap.Int64("user_id", userID))

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: change\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()
		case <-keepalive.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()
		case <-clientGone:
			return
		}
	}
}
