package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	"github.com/tekkistudio/tekki-chat/internal/service"
)

// PageContextDTO is the page the widget was shown on.
type PageContextDTO struct {
	Page string `json:"page"`
	URL  string `json:"url"`
}

func (p PageContextDTO) toDomain() domain.PageContext {
	return domain.PageContext{Page: p.Page, URL: p.URL}
}

// SendMessageRequest is the body of POST /api/chat/sessions/{id}/messages.
type SendMessageRequest struct {
	Content string         `json:"content"`
	Context PageContextDTO `json:"context"`
}

// ActionRequest is the body of POST /api/chat/sessions/{id}/actions.
type ActionRequest struct {
	Action   string         `json:"action"`
	Business string         `json:"business,omitempty"`
	Value    string         `json:"value,omitempty"`
	Label    string         `json:"label"`
	Context  PageContextDTO `json:"context"`
}

func (a ActionRequest) toInput(userAgent string) service.ActionInput {
	return service.ActionInput{
		Action:    domain.Action(a.Action),
		Business:  a.Business,
		Value:     a.Value,
		Label:     a.Label,
		Page:      a.Context.toDomain(),
		UserAgent: userAgent,
	}
}

// SessionResponse is the client view of a session.
type SessionResponse struct {
	ID             string                   `json:"id"`
	Messages       []domain.Message         `json:"messages"`
	Funnel         domain.ConversionFunnel  `json:"funnel"`
	State          domain.ConversationState `json:"state"`
	ActiveBusiness string                   `json:"active_business,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

func newSessionResponse(s *domain.Session) SessionResponse {
	messages := s.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	return SessionResponse{
		ID:             s.ID,
		Messages:       messages,
		Funnel:         s.Funnel,
		State:          s.State,
		ActiveBusiness: s.ActiveBusiness,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// MessagesResponse pages messages after a cursor. LastID is the cursor for
// the next poll; it equals the request cursor when nothing is new.
type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	LastID   int64            `json:"last_id"`
}

func newMessagesResponse(messages []domain.Message, after int64) MessagesResponse {
	if messages == nil {
		messages = []domain.Message{}
	}
	last := after
	if n := len(messages); n > 0 {
		last = messages[n-1].ID
	}
	return MessagesResponse{Messages: messages, LastID: last}
}

// BusinessDTO is a catalog entry as listed to visitors.
type BusinessDTO struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Slug                string    `json:"slug"`
	Category            string    `json:"category"`
	Description         string    `json:"description"`
	Price               int64     `json:"price"`
	PriceLabel          string    `json:"price_label"`
	MonthlyPotential    int64     `json:"monthly_potential"`
	ROIEstimationMonths *int      `json:"roi_estimation_months,omitempty"`
	TimeRequiredWeekly  string    `json:"time_required_weekly,omitempty"`
	Benefits            []string  `json:"benefits,omitempty"`
	URL                 string    `json:"url"`
}

// BusinessesResponse is the body of GET /api/businesses.
type BusinessesResponse struct {
	Businesses []BusinessDTO `json:"businesses"`
	Total      int           `json:"total"`
}

func newBusinessesResponse(list []*domain.Business, pagePath string) BusinessesResponse {
	out := make([]BusinessDTO, 0, len(list))
	for _, b := range list {
		out = append(out, BusinessDTO{
			ID:                  b.ID,
			Name:                b.Name,
			Slug:                b.Slug,
			Category:            b.Category,
			Description:         b.Description,
			Price:               b.Price,
			PriceLabel:          domain.FormatAmount(b.Price) + " FCFA",
			MonthlyPotential:    b.MonthlyPotential,
			ROIEstimationMonths: b.ROIEstimationMonths,
			TimeRequiredWeekly:  b.TimeRequiredWeekly,
			Benefits:            b.Benefits,
			URL:                 b.PagePath(pagePath),
		})
	}
	return BusinessesResponse{Businesses: out, Total: len(out)}
}

// AcquisitionRequestBody is the body of POST /api/acquisition-requests.
type AcquisitionRequestBody struct {
	BusinessID string `json:"business_id"`
	SessionID  string `json:"session_id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Budget     string `json:"budget,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (b AcquisitionRequestBody) toInput() service.AcquisitionInput {
	return service.AcquisitionInput{
		BusinessID: b.BusinessID,
		SessionID:  b.SessionID,
		Name:       b.Name,
		Email:      b.Email,
		Phone:      b.Phone,
		Budget:     b.Budget,
		Message:    b.Message,
	}
}

// AcquisitionResponse acknowledges a stored lead.
type AcquisitionResponse struct {
	ID        uuid.UUID                       `json:"id"`
	Status    domain.AcquisitionRequestStatus `json:"status"`
	CreatedAt time.Time                       `json:"created_at"`
	Message   string                          `json:"message"`
}

const acquisitionThanks = "Merci ! Notre équipe vous contactera très rapidement pour finaliser l'acquisition."
