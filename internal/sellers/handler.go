package sellers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadflow_backend/platform/httpkit"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type SellerResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Active             bool      `json:"active"`
	Expertise          string    `json:"expertise"`
	AvgResponseMinutes int       `json:"avgResponseMinutes"`
}

func toSellerResponse(s Seller) SellerResponse {
	return SellerResponse{
		ID:                 s.ID,
		Name:               s.Name,
		Email:              s.Email,
		Active:             s.Active,
		Expertise:          s.Expertise,
		AvgResponseMinutes: s.AvgResponseMinutes,
	}
}

type PerformanceRowResponse struct {
	SellerID         uuid.UUID `json:"sellerId"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Expertise        string    `json:"expertise"`
	LeadsAssigned    int       `json:"leadsAssigned"`
	LeadsContacted   int       `json:"leadsContacted"`
	LeadsQualified   int       `json:"leadsQualified"`
	ProposalsSent    int       `json:"proposalsSent"`
	Closes           int       `json:"closes"`
	RevenueCents     int64     `json:"revenueCents"`
	PerformanceScore int       `json:"performanceScore"`
}

func (h *Handler) List(c *gin.Context) {
	sellers, err := h.repo.ListActive(c.Request.Context())
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}

	responses := make([]SellerResponse, 0, len(sellers))
	for _, s := range sellers {
		responses = append(responses, toSellerResponse(s))
	}
	httpkit.OK(c, responses)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid seller id", nil)
		return
	}

	seller, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, toSellerResponse(seller))
}

// Performance lists the active roster with the requested period's counters
// folded in. Defaults to the current month.
func (h *Handler) Performance(c *gin.Context) {
	period := c.Query("period")
	if period == "" {
		period = PeriodOf(time.Now())
	} else if _, err := time.Parse("2006-01", period); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "period must be formatted YYYY-MM", nil)
		return
	}

	views, err := h.repo.ListPerformance(c.Request.Context(), period)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}

	responses := make([]PerformanceRowResponse, 0, len(views))
	for _, v := range views {
		responses = append(responses, PerformanceRowResponse{
			SellerID:         v.SellerID,
			Name:             v.Name,
			Email:            v.Email,
			Expertise:        v.Expertise,
			LeadsAssigned:    v.LeadsAssigned,
			LeadsContacted:   v.LeadsContacted,
			LeadsQualified:   v.LeadsQualified,
			ProposalsSent:    v.ProposalsSent,
			Closes:           v.Closes,
			RevenueCents:     v.RevenueCents,
			PerformanceScore: v.PerformanceScore,
		})
	}
	httpkit.OK(c, gin.H{"period": period, "sellers": responses})
}
