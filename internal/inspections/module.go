// Package inspections provides the inspection ingestion bounded context
// module: snapshot storage plus the HTTP surface that feeds the automation
// engine.
package inspections

import (
	"inspection_portal/internal/automation/service"
	apphttp "inspection_portal/internal/http"
	"inspection_portal/internal/inspections/handler"
	"inspection_portal/internal/inspections/repository"
	"inspection_portal/platform/validator"
)

// Module is the inspections bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
}

// NewModule creates and initializes the inspections module. The repository
// is built by the composition root because the orchestrator also depends
// on it as its snapshot store.
func NewModule(repo *repository.Repository, orch *service.Orchestrator, val *validator.Validator) *Module {
	h := handler.New(repo, orch, val)
	return &Module{handler: h, repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "inspections"
}

// Repository returns the snapshot repository for composition-root wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts inspection routes on the service-authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/inspections")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
