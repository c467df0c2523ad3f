package domain

import (
	"context"

	"github.com/google/uuid"
)

// BusinessRepository reads the business catalog.
type BusinessRepository interface {
	// ListAvailable returns available businesses, newest first.
	ListAvailable(ctx context.Context) ([]*Business, error)

	// GetByID returns a business regardless of status, nil if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Business, error)
}

// ConversationRepository is the append-only log of chat exchanges.
type ConversationRepository interface {
	Insert(ctx context.Context, rec *ConversationRecord) error
}

// FunnelRepository is the append-only log of funnel snapshots.
type FunnelRepository interface {
	InsertSnapshot(ctx context.Context, snap *FunnelSnapshot) error
}

// FAQRepository reads curated answers.
type FAQRepository interface {
	ListActive(ctx context.Context) ([]*FAQ, error)
}

// AcquisitionRepository stores acquisition leads.
type AcquisitionRepository interface {
	Create(ctx context.Context, req *AcquisitionRequest) error
}

// SessionStore keeps chat sessions between requests.
type SessionStore interface {
	// Get returns the session or nil when it does not exist or expired.
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
