package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/audit"
	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
	"github.com/tekkistudio/tekki-chat/internal/service"
)

// BusinessLister lists the businesses offered for sale.
type BusinessLister interface {
	Available() []*domain.Business
}

// AcquisitionSubmitter stores acquisition leads.
type AcquisitionSubmitter interface {
	Submit(ctx context.Context, in service.AcquisitionInput) (*domain.AcquisitionRequest, error)
}

// CatalogHandler serves the business list and acquisition leads.
type CatalogHandler struct {
	catalog      BusinessLister
	acquisitions AcquisitionSubmitter
	pagePath     string
	audit        *audit.Logger
	logger       *zap.Logger
}

// NewCatalogHandler creates a CatalogHandler. pagePath is the site path
// business pages live under.
func NewCatalogHandler(catalog BusinessLister, acquisitions AcquisitionSubmitter, pagePath string, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		panic("logger is required")
	}
	return &CatalogHandler{
		catalog:      catalog,
		acquisitions: acquisitions,
		pagePath:     pagePath,
		logger:       logger.Named("catalog_handler"),
	}
}

// SetAuditLogger records submitted and refused leads to the audit trail.
func (h *CatalogHandler) SetAuditLogger(a *audit.Logger) {
	h.audit = a
}

// RegisterRoutes registers the catalog routes on r.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/businesses", h.HandleListBusinesses)
	r.Post("/api/acquisition-requests", h.HandleCreateAcquisitionRequest)
}

// HandleListBusinesses lists the available businesses from the cached
// catalog.
func (h *CatalogHandler) HandleListBusinesses(w http.ResponseWriter, r *http.Request) {
	JSONWithRequest(w, r, http.StatusOK, newBusinessesResponse(h.catalog.Available(), h.pagePath))
}

// HandleCreateAcquisitionRequest stores a lead for an available business.
func (h *CatalogHandler) HandleCreateAcquisitionRequest(w http.ResponseWriter, r *http.Request) {
	var body AcquisitionRequestBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	req, err := h.acquisitions.Submit(r.Context(), body.toInput())
	if err != nil {
		if apperrors.IsUserError(err) {
			h.audit.LeadRejected(r.Context(), auditSource(r), body.BusinessID, body.SessionID, string(apperrors.GetCode(err)))
		}
		respondError(w, r, h.logger, err)
		return
	}
	h.audit.LeadSubmitted(r.Context(), auditSource(r), req.ID.String(), req.BusinessID.String(), req.SessionID, req.Email, req.Phone)
	JSONWithRequest(w, r, http.StatusCreated, AcquisitionResponse{
		ID:        req.ID,
		Status:    req.Status,
		CreatedAt: req.CreatedAt,
		Message:   acquisitionThanks,
	})
}
