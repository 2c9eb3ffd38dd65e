// Package handler exposes the inspection ingestion API: snapshot upserts,
// workflow events, collection diffs and the pending automations display.
package handler

import (
	"net/http"

	"inspection_portal/internal/automation/domain"
	"inspection_portal/internal/automation/service"
	inspection "inspection_portal/internal/inspections/domain"
	"inspection_portal/internal/inspections/repository"
	"inspection_portal/internal/inspections/transport"
	"inspection_portal/platform/httpkit"
	"inspection_portal/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for inspections and their automations.
type Handler struct {
	repo *repository.Repository
	orch *service.Orchestrator
	val  *validator.Validator
}

// New creates a new inspections handler.
func New(repo *repository.Repository, orch *service.Orchestrator, val *validator.Validator) *Handler {
	return &Handler{repo: repo, orch: orch, val: val}
}

// RegisterRoutes registers the inspection routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/:id", h.UpsertSnapshot)
	rg.POST("/:id/events", h.IngestEvent)
	rg.POST("/:id/collections/:kind/changed", h.CollectionsChanged)
	rg.GET("/:id/automations/pending", h.PendingAutomations)
}

// UpsertSnapshot replaces the stored inspection projection. The portal
// pushes a fresh snapshot before emitting workflow events against it.
func (h *Handler) UpsertSnapshot(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var snap inspection.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	snap.ID = id

	for idx, cfg := range snap.Triggers {
		if !cfg.AutomationTrigger.Valid() {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, gin.H{
				"triggerIndex": idx,
				"reason":       "unknown trigger key",
			})
			return
		}
	}

	if err := h.repo.UpsertSnapshot(c.Request.Context(), snap); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "stored"})
}

// IngestEvent routes one workflow event to the orchestrator. The event
// field is either a trigger key or a workflow signal that selects a
// dedicated path (payment, agreement signing, anchor date edits,
// cancellation).
func (h *Handler) IngestEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	ctx := c.Request.Context()
	switch req.Event {
	case transport.SignalPayment:
		err = h.orch.OnPaymentEvent(ctx, id)
	case transport.SignalAgreementSigned:
		err = h.orch.OnAgreementSigned(ctx, id, req.PrevAllSigned)
	case transport.SignalAnchorDateChanged:
		err = h.orch.OnAnchorDateChanged(ctx, id)
	case transport.SignalCanceled:
		err = h.orch.CancelInspection(ctx, id)
	default:
		key := domain.TriggerKey(req.Event)
		if !key.Valid() {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, gin.H{"event": req.Event})
			return
		}
		// The payment and agreement keys go through their exclusive paths so
		// a direct post cannot double-notify past the combined event.
		switch key {
		case domain.KeyInspectionFullyPaid, domain.KeySignedAndPaid:
			err = h.orch.OnPaymentEvent(ctx, id)
		case domain.KeyAllAgreementsSigned:
			err = h.orch.OnAgreementSigned(ctx, id, req.PrevAllSigned)
		default:
			err = h.orch.OnEvent(ctx, id, key)
		}
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "processed"})
}

// CollectionsChanged feeds a before/after collection pair through change
// detection.
func (h *Handler) CollectionsChanged(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.CollectionsChangedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	switch c.Param("kind") {
	case transport.KindPricing:
		err = h.orch.OnPricingChanged(ctx, id, req.PricingBefore, req.PricingAfter)
	case transport.KindAgreements:
		err = h.orch.OnAgreementsChanged(ctx, id, req.AgreementsBefore, req.AgreementsAfter)
	case transport.KindDocuments:
		err = h.orch.OnDocumentsChanged(ctx, id, req.DocumentsBefore, req.DocumentsAfter)
	default:
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, gin.H{"kind": c.Param("kind")})
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "processed"})
}

// PendingAutomations lists the inspection's scheduled automations.
func (h *Handler) PendingAutomations(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	records, err := h.orch.PendingForInspection(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.NewPendingResponse(id.String(), records))
}
