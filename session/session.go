package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadlineS = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// Packet is the unified WS message envelope.
type Packet struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session represents a connected viewer's WebSocket session. It tracks the
// scoped notification channels the viewer subscribed to so they can be torn
// down on disconnect.
type Session struct {
	UserID int64
	Conn   *websocket.Conn

	SendChan chan []byte
	Done     chan struct{}

	mu     sync.Mutex
	closed bool
	unsubs map[string]func() // channel name → unsubscribe

	logger *zap.Logger
}

// New creates a Session with its write goroutine started.
func New(userID int64, conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		UserID:   userID,
		Conn:     conn,
		SendChan: make(chan []byte, sendChanBuf),
		Done:     make(chan struct{}),
		unsubs:   make(map[string]func()),
		logger:   logger,
	}
	go s.writePump()
	return s
}

// writePump drains SendChan and writes to the WebSocket connection.
// Also sends periodic pings to detect dead connections quickly.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data, ok := <-s.SendChan:
			if !ok {
				return
			}
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error",
					zap.Int64("user_id", s.UserID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes pkt and sends it non-blocking. Drops if the channel is full
// or the session is closed.
func (s *Session) Send(pkt *Packet) {
	if s.IsClosed() {
		return
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		s.logger.Error("packet marshal failed", zap.Error(err))
		return
	}
	select {
	case s.SendChan <- data:
	default:
		s.logger.Warn("ws send buffer full, dropping packet",
			zap.Int64("user_id", s.UserID),
			zap.String("type", pkt.Type))
	}
}

// TrackSubscription registers the unsubscribe hook for a channel. Replaces
// (and cancels) an existing subscription to the same channel.
func (s *Session) TrackSubscription(channel string, unsub func()) {
	s.mu.Lock()
	old := s.unsubs[channel]
	s.unsubs[channel] = unsub
	s.mu.Unlock()
	if old != nil {
		old()
	}
}

// Unsubscribe cancels one tracked subscription.
func (s *Session) Unsubscribe(channel string) {
	s.mu.Lock()
	unsub := s.unsubs[channel]
	delete(s.unsubs, channel)
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// SetReadDeadline refreshes the read deadline.
func (s *Session) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadlineS))
}

// Close tears down the session and cancels all tracked subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubs := make([]func(), 0, len(s.unsubs))
	for _, u := range s.unsubs {
		unsubs = append(unsubs, u)
	}
	s.unsubs = make(map[string]func())
	s.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	close(s.Done)
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
