package campaigns

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"
)

const (
	msgInvalidRequest    = "invalid request"
	msgValidationFailed  = "validation failed"
	msgInvalidCampaignID = "invalid campaign id"
)

// trackingPixel is a 1x1 transparent GIF served on open callbacks.
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the campaign management routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/send", h.SendNow)
	rg.POST("/:id/cancel", h.Cancel)
}

// RegisterTrackingRoutes registers the public tracking callbacks. These live
// outside the authenticated groups; email clients carry no credentials.
func (h *Handler) RegisterTrackingRoutes(engine *gin.Engine) {
	engine.GET("/track-email/:leadId/open", h.TrackOpen)
	engine.GET("/track-email/:leadId/click", h.TrackClick)
}

type CreateCampaignRequest struct {
	Name         string     `json:"name" validate:"required,min=2,max=200"`
	Subject      string     `json:"subject" validate:"required,min=2,max=300"`
	BodyTemplate string     `json:"bodyTemplate" validate:"required"`
	Targeting    Targeting  `json:"targeting"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
}

type CampaignResponse struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Subject      string     `json:"subject"`
	BodyTemplate string     `json:"bodyTemplate"`
	Targeting    Targeting  `json:"targeting"`
	Status       Status     `json:"status"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func toCampaignResponse(c Campaign) CampaignResponse {
	return CampaignResponse{
		ID:           c.ID,
		Name:         c.Name,
		Subject:      c.Subject,
		BodyTemplate: c.BodyTemplate,
		Targeting:    c.Targeting,
		Status:       c.Status,
		ScheduledAt:  c.ScheduledAt,
		SentAt:       c.SentAt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.GetIdentity(c)
	params := CreateParams{
		Name:         req.Name,
		Subject:      req.Subject,
		BodyTemplate: req.BodyTemplate,
		Targeting:    req.Targeting,
		ScheduledAt:  req.ScheduledAt,
	}
	if identity.UserID != uuid.Nil {
		userID := identity.UserID
		params.CreatedBy = &userID
	}

	campaign, err := h.svc.Create(c.Request.Context(), params)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.Created(c, toCampaignResponse(campaign))
}

func (h *Handler) List(c *gin.Context) {
	campaigns, err := h.svc.List(c.Request.Context())
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}

	responses := make([]CampaignResponse, 0, len(campaigns))
	for _, campaign := range campaigns {
		responses = append(responses, toCampaignResponse(campaign))
	}
	httpkit.OK(c, responses)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	campaign, metrics, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, gin.H{
		"campaign": toCampaignResponse(campaign),
		"metrics":  metrics,
	})
}

func (h *Handler) SendNow(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	report, err := h.svc.SendNow(c.Request.Context(), id)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, report)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	campaign, err := h.svc.Cancel(c.Request.Context(), id)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, toCampaignResponse(campaign))
}

// LeadEngagement returns the campaign engagement history for one lead.
func (h *Handler) LeadEngagement(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	view, err := h.svc.LeadEmailView(c.Request.Context(), leadID)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, view)
}

// TrackOpen serves the tracking pixel. It always answers with the GIF, even
// for malformed ids, so broken pixels never surface in the email client.
func (h *Handler) TrackOpen(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("leadId"))
	if err == nil {
		h.svc.TrackOpen(c.Request.Context(), leadID, parseCampaignRef(c), c.ClientIP(), c.Request.UserAgent())
	}

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/gif", trackingPixel)
}

// TrackClick records the click and redirects to the original link. The link
// parameter arrives already decoded by the query parser; decoding it again
// would corrupt destinations with literal + or %XX sequences.
func (h *Handler) TrackClick(c *gin.Context) {
	link := c.Query("link")
	if !isRedirectableLink(link) {
		httpkit.Error(c, http.StatusBadRequest, "invalid link", nil)
		return
	}

	leadID, err := uuid.Parse(c.Param("leadId"))
	if err == nil {
		h.svc.TrackClick(c.Request.Context(), leadID, parseCampaignRef(c), link, c.ClientIP(), c.Request.UserAgent())
	}

	c.Redirect(http.StatusFound, link)
}

func campaignID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidCampaignID, nil)
		return uuid.Nil, false
	}
	return id, true
}

func parseCampaignRef(c *gin.Context) *uuid.UUID {
	raw := c.Query("cid")
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// isRedirectableLink guards the click redirect against open-redirect abuse of
// non-http schemes.
func isRedirectableLink(link string) bool {
	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}
