package domain

import "time"

// StateKind names the question the assistant is waiting on.
type StateKind string

const (
	StateIdle                   StateKind = "idle"
	StateAwaitingBusinessChoice StateKind = "awaiting_business_choice"
	StateAwaitingPageViewed     StateKind = "awaiting_page_viewed"
	StateAwaitingAspectChoice   StateKind = "awaiting_aspect_choice"
	StateAwaitingBudget         StateKind = "awaiting_budget"
	StateAwaitingAcquisition    StateKind = "awaiting_acquisition"
)

// ConversationState is the explicit position in the guided flow. Business is
// set for the kinds that are about one business.
type ConversationState struct {
	Kind     StateKind `json:"kind"`
	Business string    `json:"business,omitempty"`
}

// Idle is the state of a conversation with no pending question.
func Idle() ConversationState {
	return ConversationState{Kind: StateIdle}
}

// About returns a state of kind k concerning business.
func About(k StateKind, business string) ConversationState {
	return ConversationState{Kind: k, Business: business}
}

// Session is the server-side state of one chat widget instance.
type Session struct {
	ID             string            `json:"id"`
	Messages       []Message         `json:"messages"`
	Funnel         ConversionFunnel  `json:"funnel"`
	ActiveBusiness string            `json:"active_business,omitempty"`
	State          ConversationState `json:"state"`
	// Seq is incremented for every accepted visitor input. A completion is
	// applied only if the sequence it was started with is still current.
	Seq       uint64    `json:"seq"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastMessageID returns the id of the newest message, 0 if there is none.
func (s *Session) LastMessageID() int64 {
	if len(s.Messages) == 0 {
		return 0
	}
	return s.Messages[len(s.Messages)-1].ID
}

// LastUserMessage returns the newest visitor message text.
func (s *Session) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// ConversationRecord is one persisted visitor/assistant exchange.
type ConversationRecord struct {
	SessionID         string    `db:"session_id"`
	UserMessage       string    `db:"user_message"`
	AssistantResponse string    `db:"assistant_response"`
	Page              string    `db:"page"`
	URL               string    `db:"url"`
	NeedsHuman        bool      `db:"needs_human"`
	CreatedAt         time.Time `db:"created_at"`
}
