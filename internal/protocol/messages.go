// Package protocol defines the WebSocket message protocol between clients and the service.
package protocol

// Message types from client to server
const (
	TypeHello     = "hello"
	TypeUtterance = "utterance"
	TypeBye       = "bye"
)

// Message types from server to client
const (
	TypeHelloAck = "hello_ack"
	TypeError    = "error"
)

// Reserved application-range close codes. These values are a wire contract
// with deployed clients and must not change.
const (
	CloseQuotaExceeded    = 4001
	CloseDurationExceeded = 4002
	CloseLifecycleBlocked = 4003
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type           string `json:"type"`
	Ts             int64  `json:"ts"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// HelloMessage is sent by a client to request session admission.
type HelloMessage struct {
	BaseMessage
	UserID   string `json:"user_id"`
	Category string `json:"category,omitempty"`
}

// HelloAckMessage is sent by the server after successful admission.
type HelloAckMessage struct {
	BaseMessage
	SessionKey string `json:"session_key"`
	MaxDaily   int    `json:"max_daily"`
	Remaining  int    `json:"remaining"`
}

// UtteranceMessage carries one transcript entry.
type UtteranceMessage struct {
	BaseMessage
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// ByeMessage is sent by a client to end the session cleanly.
type ByeMessage struct {
	BaseMessage
}

// ErrorMessage is sent by the server when an error occurs.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeInternalError   = "internal_error"
)
