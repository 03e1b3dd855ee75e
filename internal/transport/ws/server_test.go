package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/kaiwa-dev/kaiwa/internal/adapter/summarizer"
	"github.com/kaiwa-dev/kaiwa/internal/config"
	"github.com/kaiwa-dev/kaiwa/internal/protocol"
	"github.com/kaiwa-dev/kaiwa/internal/quota"
	"github.com/kaiwa-dev/kaiwa/internal/service"
	"github.com/kaiwa-dev/kaiwa/internal/session"
	"github.com/kaiwa-dev/kaiwa/policy"
	"github.com/kaiwa-dev/kaiwa/tests/helpers"
)

func newTestServer(t *testing.T, closeAfter time.Duration, policyContent string) (*httptest.Server, *service.Service) {
	t.Helper()

	db := helpers.NewTestSQLiteStore(t)
	cfg := &config.Config{
		MaxDailySessions:   3,
		MaxSessionDuration: 10 * time.Minute,
		SessionGracePeriod: time.Minute,
		RecoveryBatchSize:  10,
		PendingStaleAfter:  30 * time.Minute,
		SummaryTimeout:     time.Second,
	}
	registry := session.NewRegistry(closeAfter)
	evaluator := quota.NewEvaluator(db, registry, cfg.MaxDailySessions)

	policyEngine, err := policy.NewEngine(context.Background(), policyContent)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	svc := service.New(db, registry, evaluator, summarizer.NewMockClient(), policyEngine, cfg)

	e := echo.New()
	e.GET("/ws", NewServer(svc).HandleWebSocket)
	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	return ts, svc
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func sendHello(t *testing.T, c *websocket.Conn, userID string) {
	t.Helper()
	msg := protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeHello, Ts: time.Now().UnixMilli()},
		UserID:      userID,
	}
	if err := c.WriteJSON(msg); err != nil {
		t.Fatalf("write hello: %v", err)
	}
}

func readAck(t *testing.T, c *websocket.Conn) protocol.HelloAckMessage {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ack protocol.HelloAckMessage
	if err := c.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Type != protocol.TypeHelloAck || ack.SessionKey == "" || ack.ConversationID == "" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	return ack
}

// readCloseCode drains the connection until the server's close frame arrives
// and returns its code.
func readCloseCode(t *testing.T, c *websocket.Conn) int {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return ce.Code
			}
			t.Fatalf("expected close frame, got %v", err)
		}
	}
}

func TestHelloQuotaExceededClosesWith4001(t *testing.T) {
	ts, svc := newTestServer(t, time.Hour, policy.DefaultPolicy)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.StartSession(ctx, "u1", "", nil); err != nil {
			t.Fatalf("StartSession %d: %v", i, err)
		}
	}

	c := dialWS(t, ts)
	sendHello(t, c, "u1")

	if code := readCloseCode(t, c); code != 4001 {
		t.Fatalf("expected close code 4001, got %d", code)
	}
}

func TestHelloBlockedUserClosesWith4003(t *testing.T) {
	ts, _ := newTestServer(t, time.Hour, `
package admission

import rego.v1

default decision := "allow"

decision := "block" if {
	input.user_id == "banned"
}
`)

	c := dialWS(t, ts)
	sendHello(t, c, "banned")

	if code := readCloseCode(t, c); code != 4003 {
		t.Fatalf("expected close code 4003, got %d", code)
	}
}

func TestSessionDurationExceededClosesWith4002(t *testing.T) {
	ts, _ := newTestServer(t, 50*time.Millisecond, policy.DefaultPolicy)

	c := dialWS(t, ts)
	sendHello(t, c, "u1")
	readAck(t, c)

	if code := readCloseCode(t, c); code != 4002 {
		t.Fatalf("expected close code 4002, got %d", code)
	}
}

func TestHelloUtteranceByeRecordsConversation(t *testing.T) {
	ts, svc := newTestServer(t, time.Hour, policy.DefaultPolicy)

	c := dialWS(t, ts)
	sendHello(t, c, "u1")
	ack := readAck(t, c)

	utt := protocol.UtteranceMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeUtterance, Ts: time.Now().UnixMilli()},
		Speaker:     "user",
		Content:     "hello",
	}
	if err := c.WriteJSON(utt); err != nil {
		t.Fatalf("write utterance: %v", err)
	}
	bye := protocol.ByeMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeBye, Ts: time.Now().UnixMilli()},
	}
	if err := c.WriteJSON(bye); err != nil {
		t.Fatalf("write bye: %v", err)
	}

	// The server ends the session after bye; wait for the durable record.
	ctx := context.Background()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conv, transcript, err := svc.GetConversation(ctx, ack.ConversationID)
		if err == nil && conv.EndedAt != nil {
			if len(transcript) != 1 || transcript[0].Content != "hello" {
				t.Fatalf("unexpected transcript: %+v", transcript)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("conversation never finalized: conv=%+v err=%v", conv, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestUtteranceBeforeHelloIsRejected(t *testing.T) {
	ts, _ := newTestServer(t, time.Hour, policy.DefaultPolicy)

	c := dialWS(t, ts)
	utt := protocol.UtteranceMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeUtterance, Ts: time.Now().UnixMilli()},
		Speaker:     "user",
		Content:     "hello",
	}
	if err := c.WriteJSON(utt); err != nil {
		t.Fatalf("write utterance: %v", err)
	}

	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	var errMsg protocol.ErrorMessage
	if err := c.ReadJSON(&errMsg); err != nil {
		t.Fatalf("read error message: %v", err)
	}
	if errMsg.Type != protocol.TypeError || errMsg.Code != protocol.ErrorCodeSessionRequired {
		t.Fatalf("unexpected error message: %+v", errMsg)
	}
}
