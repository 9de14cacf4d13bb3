package websocket

import "github.com/lnrs/assessment-portal/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionNavigate   Action = "navigate"
	ActionAnswer     Action = "answer"
	ActionVisibility Action = "visibility"
	ActionSubmit     Action = "submit"
	ActionPing       Action = "ping"
)

// RequestPayload is every client message. Fields are read according to
// Action; ID is echoed back so the client can match replies.
type RequestPayload struct {
	ID     string `json:"id,omitempty"`
	Action Action `json:"action"`

	// navigate
	Move  model.NavigateAction `json:"move,omitempty"`
	Index int                  `json:"index,omitempty"`

	// navigate (section) and answer
	SectionID string `json:"section_id,omitempty"`

	// answer
	QuestionIndex int    `json:"question_index,omitempty"`
	Answer        string `json:"answer,omitempty"`

	// visibility
	Hidden bool `json:"hidden,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────
// Session updates are sent as-is; their "event" field carries the update kind.

type Event string

const (
	EventAck   Event = "ack"
	EventError Event = "error"
	EventPong  Event = "pong"
)

type AckResponse struct {
	Event  Event  `json:"event"`
	ID     string `json:"id,omitempty"`
	Action Action `json:"action"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	ID    string `json:"id,omitempty"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event  `json:"event"`
	ID    string `json:"id,omitempty"`
}
