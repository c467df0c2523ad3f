package domain

import "github.com/google/uuid"

// FAQ is a curated question with a canned answer.
type FAQ struct {
	ID                uuid.UUID `json:"id" db:"id"`
	Question          string    `json:"question" db:"question"`
	Answer            string    `json:"answer" db:"answer"`
	Category          string    `json:"category" db:"category"`
	CustomSuggestions []string  `json:"custom_suggestions,omitempty" db:"custom_suggestions"`
	Active            bool      `json:"active" db:"active"`
}
