package sellers

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/logger"
)

// Module is the sellers bounded context implementing http.Module.
type Module struct {
	handler *Handler
	repo    *Repository
	tracker *Tracker
}

// NewModule wires the sellers module and subscribes the performance tracker
// to lead lifecycle events.
func NewModule(pool *pgxpool.Pool, leadRepo *repository.Repository, bus events.Bus, log *logger.Logger) *Module {
	repo := New(pool)
	tracker := NewTracker(repo, leadRepo, log)
	tracker.Register(bus)

	return &Module{handler: NewHandler(repo), repo: repo, tracker: tracker}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "sellers"
}

// Repository returns the seller repository for cross-module use.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts the seller routes. The roster is visible to any
// authenticated user; performance reporting is admin only.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	rg := ctx.Protected.Group("/sellers")
	rg.GET("", m.handler.List)
	rg.GET("/:id", m.handler.GetByID)
	ctx.Admin.GET("/sellers/performance", m.handler.Performance)
}
