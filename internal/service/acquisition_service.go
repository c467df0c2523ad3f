package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/clock"
	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
	"github.com/tekkistudio/tekki-chat/internal/metrics"
	"github.com/tekkistudio/tekki-chat/internal/sanitize"
	"github.com/tekkistudio/tekki-chat/internal/validation"
)

// AcquisitionInput is a lead submitted from a business page or the chat.
type AcquisitionInput struct {
	BusinessID string
	SessionID  string
	Name       string
	Email      string
	Phone      string
	Budget     string
	Message    string
}

// AcquisitionService records visitors' intent to buy a business.
type AcquisitionService struct {
	businesses domain.BusinessRepository
	requests   domain.AcquisitionRepository
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewAcquisitionService creates an AcquisitionService.
func NewAcquisitionService(
	businesses domain.BusinessRepository,
	requests domain.AcquisitionRepository,
	c clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
) *AcquisitionService {
	if c == nil {
		c = clock.New()
	}
	return &AcquisitionService{
		businesses: businesses,
		requests:   requests,
		clock:      c,
		logger:     logger.Named("acquisition"),
		metrics:    m,
	}
}

// Submit validates and stores a lead. Only available businesses accept
// leads.
func (s *AcquisitionService) Submit(ctx context.Context, in AcquisitionInput) (*domain.AcquisitionRequest, error) {
	in = trimInput(in)

	errs := validation.NewLeadValidator().ValidateAll(in.BusinessID, in.Name, in.Email, in.Phone, in.Budget, in.Message)
	if errs.HasErrors() {
		return nil, apperrors.ValidationFailed(errs.Error())
	}
	businessID := uuid.MustParse(in.BusinessID)

	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, apperrors.WrapWithOp(err, "acquisition.Submit")
	}
	if business == nil {
		return nil, apperrors.ErrBusinessNotFound
	}
	if !business.IsAvailable() {
		return nil, apperrors.ErrBusinessSold
	}

	req := &domain.AcquisitionRequest{
		ID:         uuid.New(),
		BusinessID: businessID,
		SessionID:  in.SessionID,
		Name:       in.Name,
		Email:      strings.ToLower(in.Email),
		Phone:      validation.SanitizePhoneNumber(in.Phone),
		Budget:     in.Budget,
		Message:    in.Message,
		Status:     domain.AcquisitionStatusNew,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperrors.WrapWithOp(err, "acquisition.Submit")
	}

	s.metrics.RecordAcquisitionRequest()
	s.logger.Info("acquisition request received",
		zap.String("request_id", req.ID.String()),
		zap.String("business", business.Name),
		zap.String("email", sanitize.Email(req.Email)),
		zap.String("session_id", req.SessionID),
	)
	return req, nil
}

func trimInput(in AcquisitionInput) AcquisitionInput {
	in.BusinessID = strings.TrimSpace(in.BusinessID)
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.Name = validation.SanitizeString(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Budget = validation.SanitizeString(in.Budget)
	in.Message = validation.SanitizeString(in.Message)
	return in
}
