package domain

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PageContext is where the visitor was when a message was sent.
type PageContext struct {
	Page string `json:"page"`
	URL  string `json:"url"`
}

// Action tags a suggestion chip so the dialogue engine dispatches on intent
// rather than on the rendered label.
type Action string

const (
	// ActionMessage sends the label as if the visitor typed it.
	ActionMessage        Action = "message"
	ActionSelectBusiness Action = "select_business"
	ActionPageViewed     Action = "page_viewed"
	ActionPageNotViewed  Action = "page_not_viewed"
	ActionOpenPage       Action = "open_page"
	ActionAskAspect      Action = "ask_aspect"
	ActionAcquire        Action = "acquire"
	ActionContact        Action = "contact"
	ActionRetry          Action = "retry"
	ActionUndecided      Action = "undecided"
	ActionChooseBudget   Action = "choose_budget"
	ActionShowBusinesses Action = "show_businesses"
	ActionMoreQuestions  Action = "more_questions"
)

// KnownActions returns every action a client may send.
func KnownActions() []string {
	return []string{
		string(ActionMessage), string(ActionSelectBusiness), string(ActionPageViewed),
		string(ActionPageNotViewed), string(ActionOpenPage), string(ActionAskAspect),
		string(ActionAcquire), string(ActionContact), string(ActionRetry),
		string(ActionUndecided), string(ActionChooseBudget), string(ActionShowBusinesses),
		string(ActionMoreQuestions),
	}
}

// Aspect is one facet of a business a visitor can ask about.
type Aspect string

const (
	AspectPrice         Aspect = "price"
	AspectProfitability Aspect = "profitability"
	AspectTime          Aspect = "time"
	AspectSkills        Aspect = "skills"
	AspectSupport       Aspect = "support"
	AspectAcquisition   Aspect = "acquisition"
	AspectAdvantages    Aspect = "advantages"
)

// Suggestion is a clickable quick reply shown under an assistant message.
type Suggestion struct {
	Label    string `json:"label"`
	Action   Action `json:"action"`
	Business string `json:"business,omitempty"`
	// Value carries the aspect, budget or page path for actions that need one.
	Value string `json:"value,omitempty"`
}

// TextSuggestion builds a chip that replays its label as free text.
func TextSuggestion(label string) Suggestion {
	return Suggestion{Label: label, Action: ActionMessage}
}

// Labels returns the display labels of suggestions, in order.
func Labels(suggestions []Suggestion) []string {
	out := make([]string, len(suggestions))
	for i, s := range suggestions {
		out[i] = s.Label
	}
	return out
}

// Message is one immutable chat turn.
type Message struct {
	ID          int64        `json:"id"`
	Content     string       `json:"content"`
	Role        Role         `json:"role"`
	CreatedAt   time.Time    `json:"created_at"`
	PageContext *PageContext `json:"page_context,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	NeedsHuman  bool         `json:"needs_human,omitempty"`
}
