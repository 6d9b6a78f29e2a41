package websocket

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSubmitAnswer Action = "submit_answer"
	ActionPing         Action = "ping"
)

// RequestEnvelope is a client message. Data is relayed untouched.
type RequestEnvelope struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError           Event = "error"
	EventJoined          Event = "joined"
	EventAnswerSubmitted Event = "answer_submitted"
	EventPong            Event = "pong"
)

// JoinedResponse confirms the room subscription.
type JoinedResponse struct {
	Event  Event     `json:"event"`
	QuizID uuid.UUID `json:"quiz_id"`
}

// RoomEventResponse is a relayed event from another participant.
type RoomEventResponse struct {
	Event  Event           `json:"event"`
	UserID uuid.UUID       `json:"user_id"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
