package domain

import "time"

// Stage is the coarse purchase readiness of a visitor.
type Stage string

const (
	StageAwareness     Stage = "awareness"
	StageInterest      Stage = "interest"
	StageConsideration Stage = "consideration"
	StageDecision      Stage = "decision"
)

// Rank orders stages; unknown stages rank below awareness.
func (s Stage) Rank() int {
	switch s {
	case StageAwareness:
		return 1
	case StageInterest:
		return 2
	case StageConsideration:
		return 3
	case StageDecision:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s.Rank() > 0
}

// MaxStage returns the later of two stages.
func MaxStage(a, b Stage) Stage {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Topic tags.
const (
	TopicPrice         = "price"
	TopicTime          = "time"
	TopicSupport       = "support"
	TopicProfitability = "profitability"
	TopicExperience    = "experience"
)

// Objection tags.
const (
	ObjectionPrice      = "price"
	ObjectionTime       = "time"
	ObjectionComplexity = "complexity"
	ObjectionRisk       = "risk"
	ObjectionCompetence = "competence"
)

// ConversionFunnel accumulates what a session revealed about purchase intent.
type ConversionFunnel struct {
	Stage            Stage     `json:"stage"`
	LastActiveAt     time.Time `json:"last_active_at"`
	BusinessesViewed []string  `json:"businesses_viewed"`
	TopicsDiscussed  []string  `json:"topics_discussed"`
	Objections       []string  `json:"objections"`
	ReadyToBuy       bool      `json:"ready_to_buy"`
}

// NewConversionFunnel returns the funnel of a fresh session.
func NewConversionFunnel(now time.Time) ConversionFunnel {
	return ConversionFunnel{
		Stage:            StageAwareness,
		LastActiveAt:     now,
		BusinessesViewed: []string{},
		TopicsDiscussed:  []string{},
		Objections:       []string{},
	}
}

// IsTrivial reports whether the funnel carries nothing worth persisting.
func (f *ConversionFunnel) IsTrivial() bool {
	return f.Stage.Rank() <= StageAwareness.Rank() &&
		len(f.BusinessesViewed) == 0 &&
		len(f.TopicsDiscussed) == 0
}

// Clone returns a deep copy.
func (f ConversionFunnel) Clone() ConversionFunnel {
	f.BusinessesViewed = append([]string{}, f.BusinessesViewed...)
	f.TopicsDiscussed = append([]string{}, f.TopicsDiscussed...)
	f.Objections = append([]string{}, f.Objections...)
	return f
}

// FunnelPatch is an authoritative update from a handler that already knows
// the stage. Nil fields are left untouched.
type FunnelPatch struct {
	Stage            *Stage
	BusinessesViewed []string
	TopicsDiscussed  []string
	Objections       []string
	ReadyToBuy       *bool
}

// StagePatch is shorthand for a patch that only sets a stage.
func StagePatch(s Stage) FunnelPatch {
	return FunnelPatch{Stage: &s}
}

// FunnelSnapshot is a persisted copy of a funnel.
type FunnelSnapshot struct {
	SessionID        string    `db:"session_id"`
	Stage            Stage     `db:"funnel_stage"`
	BusinessesViewed []string  `db:"businesses_viewed"`
	TopicsDiscussed  []string  `db:"topics_discussed"`
	Objections       []string  `db:"objections"`
	ReadyToBuy       bool      `db:"ready_to_buy"`
	URL              string    `db:"url"`
	CreatedAt        time.Time `db:"created_at"`
}
