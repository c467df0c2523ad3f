package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BusinessStatus is the sale status of a catalog entry.
type BusinessStatus string

const (
	BusinessStatusAvailable BusinessStatus = "available"
	BusinessStatusSold      BusinessStatus = "sold"
)

// Business is a turnkey e-commerce venture offered for sale. It is a
// read-only projection of the catalog table.
type Business struct {
	ID                  uuid.UUID      `json:"id" db:"id"`
	Name                string         `json:"name" db:"name"`
	Slug                string         `json:"slug" db:"slug"`
	Category            string         `json:"category" db:"category"`
	Description         string         `json:"description" db:"description"`
	Price               int64          `json:"price" db:"price"`
	MonthlyPotential    int64          `json:"monthly_potential" db:"monthly_potential"`
	Status              BusinessStatus `json:"status" db:"status"`
	ROIEstimationMonths *int           `json:"roi_estimation_months,omitempty" db:"roi_estimation_months"`
	TimeRequiredWeekly  string         `json:"time_required_weekly,omitempty" db:"time_required_weekly"`
	Benefits            []string       `json:"benefits,omitempty" db:"benefits"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
}

// IsAvailable reports whether the business can be offered in a conversation.
func (b *Business) IsAvailable() bool {
	return b != nil && b.Status == BusinessStatusAvailable
}

// PagePath returns the site path of the business detail page.
func (b *Business) PagePath(base string) string {
	return base + "/" + b.Slug
}

// FormatAmount renders an amount with spaces as thousands separators.
func FormatAmount(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
