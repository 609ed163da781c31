package campaigns

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/internal/email"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"
)

// Module is the campaigns bounded context implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
	repo    *Repository
}

// NewModule wires the campaigns module. The lead repository supplies
// per-recipient opt-out state at send time; baseURL anchors tracking links.
func NewModule(pool *pgxpool.Pool, leadRepo *repository.Repository, sender email.Sender, baseURL string, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	tracker := NewTracker(baseURL)
	dispatcher := NewDispatcher(repo, leadRepo, sender, tracker, log)
	svc := NewService(repo, dispatcher, bus, log)
	h := NewHandler(svc, val)

	return &Module{handler: h, service: svc, repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "campaigns"
}

// Service returns the campaign service for cross-module use.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts campaign management under the admin group and the
// tracking callbacks on the bare engine.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/campaigns"))
	ctx.Protected.GET("/leads/:id/email-engagement", m.handler.LeadEngagement)
	m.handler.RegisterTrackingRoutes(ctx.Engine)
}
