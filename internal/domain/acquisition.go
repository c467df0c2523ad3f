package domain

import (
	"time"

	"github.com/google/uuid"
)

// AcquisitionRequestStatus tracks a lead through the sales team.
type AcquisitionRequestStatus string

const (
	AcquisitionStatusNew       AcquisitionRequestStatus = "new"
	AcquisitionStatusContacted AcquisitionRequestStatus = "contacted"
	AcquisitionStatusClosed    AcquisitionRequestStatus = "closed"
)

// AcquisitionRequest is a visitor's declared interest in buying a business.
type AcquisitionRequest struct {
	ID         uuid.UUID                `json:"id" db:"id"`
	BusinessID uuid.UUID                `json:"business_id" db:"business_id"`
	SessionID  string                   `json:"session_id,omitempty" db:"session_id"`
	Name       string                   `json:"name" db:"name"`
	Email      string                   `json:"email" db:"email"`
	Phone      string                   `json:"phone" db:"phone"`
	Budget     string                   `json:"budget,omitempty" db:"budget"`
	Message    string                   `json:"message,omitempty" db:"message"`
	Status     AcquisitionRequestStatus `json:"status" db:"status"`
	CreatedAt  time.Time                `json:"created_at" db:"created_at"`
}
