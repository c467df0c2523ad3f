// Package audit records business and operational events that sales and
// operations need to reconstruct later: leads taken, leads refused and
// runtime configuration changes.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/sanitize"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Lead events
	EventLeadSubmitted EventType = "lead.submitted"
	EventLeadRejected  EventType = "lead.rejected"

	// System events
	EventServiceStarted  EventType = "system.started"
	EventServiceStopping EventType = "system.stopping"
	EventConfigChanged   EventType = "system.config.changed"
)

// Severity represents the severity level of an audit event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event represents an audit log entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`

	// ActorType is "visitor", "operator" or "system".
	ActorType string `json:"actor_type,omitempty"`
	SourceIP  string `json:"source_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`

	Action  string `json:"action"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Source identifies where a request came from.
type Source struct {
	IP        string
	UserAgent string
	RequestID string
}

// Logger writes audit events to a dedicated named logger. A nil *Logger
// discards events.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a new audit logger.
func NewLogger(baseLogger *zap.Logger) *Logger {
	return &Logger{
		logger: baseLogger.Named("audit"),
	}
}

// Log records an audit event.
func (l *Logger) Log(_ context.Context, event *Event) {
	if l == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	level := zap.InfoLevel
	switch event.Severity {
	case SeverityWarning:
		level = zap.WarnLevel
	case SeverityError:
		level = zap.ErrorLevel
	}

	fields := []zap.Field{
		zap.String("audit_id", event.ID),
		zap.Time("audit_timestamp", event.Timestamp),
		zap.String("event_type", string(event.Type)),
		zap.String("severity", string(event.Severity)),
		zap.String("action", event.Action),
		zap.String("outcome", event.Outcome),
	}

	optional := []struct{ key, value string }{
		{"actor_type", event.ActorType},
		{"source_ip", event.SourceIP},
		{"user_agent", event.UserAgent},
		{"request_id", event.RequestID},
		{"session_id", event.SessionID},
		{"resource_type", event.ResourceType},
		{"resource_id", event.ResourceID},
		{"reason", event.Reason},
	}
	for _, f := range optional {
		if f.value != "" {
			fields = append(fields, zap.String(f.key, f.value))
		}
	}

	if len(event.Metadata) > 0 {
		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			metadataJSON = []byte(`{"error":"failed to marshal metadata"}`)
		}
		fields = append(fields, zap.ByteString("metadata", metadataJSON))
	}

	if ce := l.logger.Check(level, "audit event"); ce != nil {
		ce.Write(fields...)
	}
}

// LeadSubmitted records a stored acquisition request. Contact details are
// masked; the request row holds them in full.
func (l *Logger) LeadSubmitted(ctx context.Context, src Source, requestID, businessID, sessionID, email, phone string) {
	l.Log(ctx, &Event{
		Type:         EventLeadSubmitted,
		Severity:     SeverityInfo,
		ActorType:    "visitor",
		SourceIP:     src.IP,
		UserAgent:    src.UserAgent,
		RequestID:    src.RequestID,
		SessionID:    sessionID,
		ResourceType: "acquisition_request",
		ResourceID:   requestID,
		Action:       "acquisition request",
		Outcome:      "success",
		Metadata: map[string]interface{}{
			"business_id": businessID,
			"email":       sanitize.Email(email),
			"phone":       sanitize.Phone(phone),
		},
	})
}

// LeadRejected records an acquisition request that was refused.
func (l *Logger) LeadRejected(ctx context.Context, src Source, businessID, sessionID, reason string) {
	l.Log(ctx, &Event{
		Type:         EventLeadRejected,
		Severity:     SeverityWarning,
		ActorType:    "visitor",
		SourceIP:     src.IP,
		UserAgent:    src.UserAgent,
		RequestID:    src.RequestID,
		SessionID:    sessionID,
		ResourceType: "business",
		ResourceID:   businessID,
		Action:       "acquisition request",
		Outcome:      "failure",
		Reason:       reason,
	})
}

// ConfigChanged records a runtime configuration change.
func (l *Logger) ConfigChanged(ctx context.Context, src Source, setting, oldValue, newValue string) {
	l.Log(ctx, &Event{
		Type:         EventConfigChanged,
		Severity:     SeverityWarning,
		ActorType:    "operator",
		SourceIP:     src.IP,
		UserAgent:    src.UserAgent,
		RequestID:    src.RequestID,
		ResourceType: "setting",
		ResourceID:   setting,
		Action:       "configuration change",
		Outcome:      "success",
		Metadata: map[string]interface{}{
			"old_value": oldValue,
			"new_value": newValue,
		},
	})
}

// ServiceStarted records process start.
func (l *Logger) ServiceStarted(ctx context.Context, version string, providers []string) {
	l.Log(ctx, &Event{
		Type:      EventServiceStarted,
		Severity:  SeverityInfo,
		ActorType: "system",
		Action:    "service start",
		Outcome:   "success",
		Metadata: map[string]interface{}{
			"version":       version,
			"llm_providers": providers,
		},
	})
}

// ServiceStopping records the start of a graceful shutdown.
func (l *Logger) ServiceStopping(ctx context.Context, reason string) {
	l.Log(ctx, &Event{
		Type:      EventServiceStopping,
		Severity:  SeverityInfo,
		ActorType: "system",
		Action:    "service stop",
		Outcome:   "success",
		Reason:    reason,
	})
}
