// Package leads is the lead lifecycle bounded context: creation from
// behavioral signals, the status pipeline, notes, follow-ups, and the admin
// scoring actions.
package leads

import (
	"leadflow_backend/internal/assignment"
	"leadflow_backend/internal/engagement"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leads/handler"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/scoring"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule wires the leads module. The scoring and assignment services are
// shared with the scheduler, so they are built by the composition root and
// passed in.
func NewModule(pool *pgxpool.Pool, bus events.Bus, aggregator *engagement.Aggregator, scorer *scoring.Service, assigner *assignment.Service, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.NewService(repo, aggregator, scorer, bus, log)
	h := handler.New(svc, scorer, assigner, val)

	return &Module{handler: h, service: svc, repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lifecycle service for cross-module use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the lead repository for cross-module use.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts lead routes. All lead operations require an
// authenticated seller or admin; creation from signals is also exposed on
// the public group for the storefront integration.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/signals/leads", m.handler.Create)
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}
