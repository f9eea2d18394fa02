// Package demographics provides the composition root for census context signals.
package demographics

import (
	"leadgen_backend/internal/demographics/client"
	"leadgen_backend/internal/demographics/service"
	"leadgen_backend/internal/regions"
	"leadgen_backend/platform/config"
	"leadgen_backend/platform/logger"
)

// Module wires the demographics service.
type Module struct {
	service *service.Service
}

// NewModule creates a new demographics module writing into signals.
func NewModule(cfg config.CensusConfig, signals service.SignalStore, registry *regions.Registry, log *logger.Logger) *Module {
	cli := client.New(cfg.GetCensusAPIKey(), cfg.GetCensusACSYear(), log)
	return &Module{service: service.New(cli, signals, registry, log)}
}

// Service returns the demographics service.
func (m *Module) Service() *service.Service {
	return m.service
}
