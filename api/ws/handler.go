package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JassinAlSafe/gamerfie-sub001/cache"
	"github.com/JassinAlSafe/gamerfie-sub001/config"
	mw "github.com/JassinAlSafe/gamerfie-sub001/middleware"
	"github.com/JassinAlSafe/gamerfie-sub001/notify"
	"github.com/JassinAlSafe/gamerfie-sub001/session"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades viewer connections and bridges scoped notification
// channels onto each session.
type Handler struct {
	manager  *session.Manager
	pubsub   cache.PubSub
	kv       cache.Cache
	sec      config.SecurityConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a WebSocket Handler.
func NewHandler(manager *session.Manager, pubsub cache.PubSub, kv cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	h := &Handler{
		manager: manager,
		pubsub:  pubsub,
		kv:      kv,
		sec:     sec,
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(sec.AllowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range sec.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

// Serve handles GET /api/ws?token=.
func (h *Handler) Serve(c *gin.Context) {
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

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	sess := session.New(userID, conn, h.logger)
	h.manager.Register(sess)

	// Every viewer gets their own feed channel without an explicit subscribe.
	h.subscribe(sess, notify.FeedChannel(userID))

	conn.SetPongHandler(func(string) error {
		sess.SetReadDeadline()
		return nil
	})
	sess.SetReadDeadline()

	go h.readLoop(sess)
}

func (h *Handler) readLoop(sess *session.Session) {
	defer func() {
		sess.Close()
		h.manager.Unregister(sess.UserID)
	}()
	for {
		_, data, err := sess.Conn.ReadMessage()
		if err != nil {
			return
		}
		sess.SetReadDeadline()

		var pkt session.Packet
		if err := json.Unmarshal(data, &pkt); err != nil {
			sess.Send(&session.Packet{Type: "error", Payload: errPayload("malformed packet")})
			continue
		}
		h.dispatch(sess, &pkt)
	}
}

type subscribeRequest struct {
	Channel string `json:"channel"`
}

func (h *Handler) dispatch(sess *session.Session, pkt *session.Packet) {
	switch pkt.Type {
	case "ping":
		sess.Send(&session.Packet{Type: "pong"})
	case "subscribe":
		var req subscribeRequest
		if err := json.Unmarshal(pkt.Payload, &req); err != nil || req.Channel == "" {
			sess.Send(&session.Packet{Type: "error", Payload: errPayload("subscribe requires channel")})
			return
		}
		if !allowedChannel(sess.UserID, req.Channel) {
			sess.Send(&session.Packet{Type: "error", Payload: errPayload("channel not permitted")})
			return
		}
		h.subscribe(sess, req.Channel)
		sess.Send(&session.Packet{Type: "subscribed", Payload: rawJSON(subscribeRequest{Channel: req.Channel})})
	case "unsubscribe":
		var req subscribeRequest
		if err := json.Unmarshal(pkt.Payload, &req); err != nil || req.Channel == "" {
			sess.Send(&session.Packet{Type: "error", Payload: errPayload("unsubscribe requires channel")})
			return
		}
		sess.Unsubscribe(req.Channel)
		sess.Send(&session.Packet{Type: "unsubscribed", Payload: rawJSON(subscribeRequest{Channel: req.Channel})})
	default:
		sess.Send(&session.Packet{Type: "error", Payload: errPayload("unknown packet type")})
	}
}

// subscribe attaches a pubsub channel to the session and forwards its
// messages until the subscription is cancelled.
func (h *Handler) subscribe(sess *session.Session, channel string) {
	ctx, cancel := context.WithCancel(context.Background())
	msgCh, unsub, err := h.pubsub.Subscribe(ctx, channel)
	if err != nil {
		cancel()
		h.logger.Warn("ws subscribe failed",
			zap.Int64("user_id", sess.UserID),
			zap.String("channel", channel),
			zap.Error(err))
		sess.Send(&session.Packet{Type: "error", Payload: errPayload("subscribe failed")})
		return
	}
	sess.TrackSubscription(channel, func() {
		unsub()
		cancel()
	})

	go func() {
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				sess.Send(&session.Packet{
					Type:    "change",
					Payload: changePayload(msg.Channel, msg.Payload),
				})
			case <-sess.Done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// allowedChannel restricts subscriptions to the viewer's own scopes. Event
// channels are open: reactions and comments on any visible event are public.
func allowedChannel(userID int64, channel string) bool {
	uid := strconv.FormatInt(userID, 10)
	switch {
	case channel == "feed:"+uid:
		return true
	case strings.HasPrefix(channel, "library:"+uid+":"):
		return true
	case strings.HasPrefix(channel, "progress:"+uid+":"):
		return true
	case strings.HasPrefix(channel, "event:"):
		return true
	}
	return false
}

type changeEnvelope struct {
	Channel string          `json:"channel"`
	Change  json.RawMessage `json:"change"`
}

func changePayload(channel, payload string) json.RawMessage {
	return rawJSON(changeEnvelope{Channel: channel, Change: json.RawMessage(payload)})
}

func errPayload(msg string) json.RawMessage {
	return rawJSON(map[string]string{"message": msg})
}

func rawJSON(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
