// Package handler exposes the leads HTTP surface: listing, lifecycle
// updates, notes, follow-up operations, and the admin scoring actions.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadflow_backend/internal/assignment"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
)

// Rescorer runs scoring passes on demand. Backed by the scoring service.
type Rescorer interface {
	ScoreLead(ctx context.Context, leadID uuid.UUID, reason string) (repository.Lead, error)
	RecalculateAllPriorities(ctx context.Context) (int, error)
}

// AutoAssigner places a single lead via the assignment coordinator.
type AutoAssigner interface {
	AssignLead(ctx context.Context, leadID uuid.UUID) (*assignment.Result, error)
}

type Handler struct {
	svc      *service.Service
	rescorer Rescorer
	assigner AutoAssigner
	val      *validator.Validator
}

func New(svc *service.Service, rescorer Rescorer, assigner AutoAssigner, val *validator.Validator) *Handler {
	return &Handler{svc: svc, rescorer: rescorer, assigner: assigner, val: val}
}

// RegisterRoutes registers the lead routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/needing-follow-up", h.NeedingFollowUp)
	rg.GET("/stale", h.StaleLeads)
	rg.POST("/recalculate-priorities", h.RecalculateAllPriorities)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.PATCH("/:id/assignment", h.UpdateAssignment)
	rg.POST("/:id/auto-assign", h.AutoAssign)
	rg.POST("/:id/recalculate", h.RecalculateLead)
	rg.GET("/:id/notes", h.ListNotes)
	rg.POST("/:id/notes", h.AddNote)
	rg.POST("/:id/follow-up", h.ScheduleFollowUp)
	rg.DELETE("/:id/follow-up", h.ClearFollowUp)
	rg.POST("/:id/follow-up/complete", h.CompleteFollowUp)
}

func (h *Handler) List(c *gin.Context) {
	params := repository.ListParams{
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}

	if raw := c.Query("status"); raw != "" {
		status, ok := transport.ParseStatus(raw)
		if !ok {
			httpkit.Error(c, http.StatusBadRequest, "unknown status filter", nil)
			return
		}
		params.Status = &status
	}
	if raw := c.Query("interestLevel"); raw != "" {
		level := domain.InterestLevel(raw)
		if !domain.IsValidInterestLevel(level) {
			httpkit.Error(c, http.StatusBadRequest, "unknown interest level filter", nil)
			return
		}
		params.InterestLevel = &level
	}
	if raw := c.Query("sellerId"); raw != "" {
		sellerID, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid seller id", nil)
			return
		}
		params.AssignedSellerID = &sellerID
	}
	if c.Query("unassigned") == "true" {
		params.Unassigned = true
	}
	if raw := c.Query("minPriority"); raw != "" {
		min, err := strconv.Atoi(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid minPriority", nil)
			return
		}
		params.MinPriority = &min
	}

	leads, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.CreateFromSignal(c.Request.Context(), service.CreateParams{
		VisitorID: req.VisitorID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Source:    req.Source,
		Tags:      req.Tags,
	})
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.Created(c, transport.ToLeadResponse(lead))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	lead, metrics, err := h.svc.GetWithEngagement(c.Request.Context(), id)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.LeadDetailResponse{
		Lead:       transport.ToLeadResponse(lead),
		Engagement: metrics,
	})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	status, validStatus := transport.ParseStatus(req.Status)
	if !validStatus {
		httpkit.Error(c, http.StatusBadRequest, "unknown status", nil)
		return
	}

	lead, err := h.svc.ChangeStatus(c.Request.Context(), id, service.ChangeStatusParams{
		Status:  status,
		Version: req.Version,
		ActorID: actorID(c),
		Note:    req.Note,
	})
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) UpdateAssignment(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req transport.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.Assign(c.Request.Context(), id, service.AssignParams{
		SellerID: req.SellerID,
		Version:  req.Version,
		ActorID:  actorID(c),
	})
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) AutoAssign(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	result, err := h.assigner.AssignLead(c.Request.Context(), id)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	if result == nil {
		httpkit.OK(c, gin.H{"assigned": false})
		return
	}
	httpkit.OK(c, gin.H{"assigned": true, "sellerId": result.SellerID, "reasoning": result.Reasoning})
}

func (h *Handler) RecalculateLead(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	lead, err := h.rescorer.ScoreLead(c.Request.Context(), id, "manual recalculation")
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) RecalculateAllPriorities(c *gin.Context) {
	processed, err := h.rescorer.RecalculateAllPriorities(c.Request.Context())
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"processed": processed})
}

func (h *Handler) NeedingFollowUp(c *gin.Context) {
	leads, err := h.svc.DueToday(c.Request.Context())
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) StaleLeads(c *gin.Context) {
	days := intQuery(c, "days", 14)
	leads, err := h.svc.Stale(c.Request.Context(), days)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

func (h *Handler) ListNotes(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	notes, err := h.svc.ListNotes(c.Request.Context(), id)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToNoteResponses(notes))
}

func (h *Handler) AddNote(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req transport.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	note, err := h.svc.AddNote(c.Request.Context(), id, actorID(c), req.Body)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.Created(c, transport.ToNoteResponse(note))
}

func (h *Handler) ScheduleFollowUp(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req transport.ScheduleFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.ScheduleFollowUp(c.Request.Context(), id, service.ScheduleFollowUpParams{
		At:      req.At,
		Channel: req.Channel,
		ActorID: actorID(c),
	})
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func (h *Handler) ClearFollowUp(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	if err := h.svc.ClearFollowUp(c.Request.Context(), id); err != nil {
		httpkit.DomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CompleteFollowUp(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req transport.CompleteFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.CompleteFollowUp(c.Request.Context(), id, service.CompleteFollowUpParams{
		ActorID:      actorID(c),
		Note:         req.Note,
		AutoSchedule: req.AutoSchedule,
	})
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

func leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.Nil, false
	}
	return id, true
}

func actorID(c *gin.Context) *uuid.UUID {
	identity := httpkit.GetIdentity(c)
	if !identity.Authenticated {
		return nil
	}
	id := identity.UserID
	return &id
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
