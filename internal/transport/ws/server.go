// Package ws provides the WebSocket endpoint for recording conversations.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/kaiwa-dev/kaiwa/internal/domain"
	"github.com/kaiwa-dev/kaiwa/internal/protocol"
	"github.com/kaiwa-dev/kaiwa/internal/service"
)

const (
	writeTimeout   = 10 * time.Second
	readTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 64 * 1024
)

// Server handles WebSocket connections.
type Server struct {
	service  *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(svc *service.Service) *Server {
	return &Server{
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// conn wraps one client connection and its session state. done is closed
// when the read loop exits and releases the ping loop.
type conn struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	done chan struct{}

	sessionKey     string
	conversationID string
}

func (c *conn) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// closeWith sends a close frame with the given application close code and
// closes the underlying connection.
func (c *conn) closeWith(code int, reason string) {
	c.mu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeTimeout))
	c.mu.Unlock()
	c.ws.Close()
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	cn := &conn{ws: ws, done: make(chan struct{})}
	ws.SetReadLimit(maxMessageSize)

	go s.pingLoop(cn)
	go s.readLoop(cn)

	return nil
}

// pingLoop keeps the connection alive until the read loop ends.
func (s *Server) pingLoop(cn *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cn.done:
			return
		case <-ticker.C:
			cn.mu.Lock()
			err := cn.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			cn.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// readLoop reads messages until the connection drops. Whatever way the
// connection ends, the session is always deregistered: abrupt disconnects
// take the same end path as a clean bye.
func (s *Server) readLoop(cn *conn) {
	defer func() {
		close(cn.done)
		if cn.sessionKey != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.service.EndSession(ctx, cn.sessionKey, cn.conversationID); err != nil {
				log.Printf("WARN: failed to end session %s: %v", cn.sessionKey, err)
			}
			cancel()
		}
		cn.ws.Close()
	}()

	cn.ws.SetReadDeadline(time.Now().Add(readTimeout))
	cn.ws.SetPongHandler(func(string) error {
		cn.ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, message, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		if done := s.handleMessage(cn, message); done {
			return
		}
	}
}

// handleMessage dispatches one incoming message. It reports whether the
// connection should be closed.
func (s *Server) handleMessage(cn *conn, data []byte) bool {
	var baseMsg protocol.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(cn, protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return false
	}

	switch baseMsg.Type {
	case protocol.TypeHello:
		return s.handleHello(cn, data)
	case protocol.TypeUtterance:
		s.handleUtterance(cn, data)
		return false
	case protocol.TypeBye:
		return true
	default:
		s.sendError(cn, protocol.ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
		return false
	}
}

// handleHello performs session admission. A refused admission closes the
// connection with the reserved close code for the refusal reason.
func (s *Server) handleHello(cn *conn, data []byte) bool {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(cn, protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return false
	}
	if cn.sessionKey != "" {
		s.sendError(cn, protocol.ErrorCodeInvalidMessage, "session already started")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grant, err := s.service.StartSession(ctx, msg.UserID, msg.Category, func(sessionKey string) {
		// Forced close: the session outlived its maximum duration.
		log.Printf("session %s exceeded maximum duration, closing", sessionKey)
		cn.closeWith(protocol.CloseDurationExceeded, "session duration exceeded")
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuotaExceeded):
			cn.closeWith(protocol.CloseQuotaExceeded, "daily session quota exceeded")
		case errors.Is(err, service.ErrUserBlocked):
			cn.closeWith(protocol.CloseLifecycleBlocked, "session not allowed")
		default:
			log.Printf("WARN: session admission failed for user %s: %v", msg.UserID, err)
			s.sendError(cn, protocol.ErrorCodeInternalError, "failed to start session")
		}
		return true
	}

	cn.sessionKey = grant.SessionKey
	cn.conversationID = grant.ConversationID

	ack := protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:           protocol.TypeHelloAck,
			Ts:             time.Now().UnixMilli(),
			ConversationID: grant.ConversationID,
		},
		SessionKey: grant.SessionKey,
		MaxDaily:   grant.Quota.MaxDaily,
		Remaining:  grant.Quota.Remaining,
	}
	cn.writeJSON(ack)

	log.Printf("Session admitted: user=%s conversation=%s", msg.UserID, grant.ConversationID)
	return false
}

// handleUtterance appends one transcript entry.
func (s *Server) handleUtterance(cn *conn, data []byte) {
	var msg protocol.UtteranceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(cn, protocol.ErrorCodeInvalidMessage, "invalid utterance message")
		return
	}
	if cn.sessionKey == "" {
		s.sendError(cn, protocol.ErrorCodeSessionRequired, "must send hello first")
		return
	}

	speaker := domain.Speaker(msg.Speaker)
	if speaker != domain.SpeakerUser && speaker != domain.SpeakerAssistant {
		s.sendError(cn, protocol.ErrorCodeInvalidMessage, "speaker must be user or assistant")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.service.RecordUtterance(ctx, cn.conversationID, speaker, msg.Content); err != nil {
		log.Printf("WARN: failed to record utterance for %s: %v", cn.conversationID, err)
		s.sendError(cn, protocol.ErrorCodeInternalError, "failed to record utterance")
	}
}

// sendError sends an error message to the connection.
func (s *Server) sendError(cn *conn, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:           protocol.TypeError,
			Ts:             time.Now().UnixMilli(),
			ConversationID: cn.conversationID,
		},
		Code:    code,
		Message: message,
	}
	cn.writeJSON(errMsg)
}
