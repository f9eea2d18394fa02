// Package exports serves API-key authenticated CSV exports of surge forecasts.
package exports

import (
	apphttp "leadgen_backend/internal/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the exports bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	repo    *Repository
}

// NewModule creates and initializes the exports module.
func NewModule(pool *pgxpool.Pool, forecasts ForecastLister) *Module {
	return &Module{
		handler: NewHandler(forecasts),
		repo:    NewRepository(pool),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "exports"
}

// Repository exposes API key storage for the operator CLI.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts export routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/exports")
	group.Use(APIKeyAuthMiddleware(m.repo))
	group.GET("/forecasts.csv", m.handler.ExportForecastsCSV)
}

var _ apphttp.Module = (*Module)(nil)
