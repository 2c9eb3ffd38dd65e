package activity

import (
	"net/http"
	"strconv"

	apphttp "inspection_portal/internal/http"
	"inspection_portal/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Module exposes the activity log over HTTP and implements http.Module.
type Module struct {
	repo *Repository
}

// NewModule creates the activity module.
func NewModule(repo *Repository) *Module {
	return &Module{repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "activity"
}

// RegisterRoutes mounts the activity routes on the service-authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/inspections/:id/activity", m.list)
}

func (m *Module) list(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := m.repo.ListForInspection(c.Request.Context(), id, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	httpkit.OK(c, gin.H{"entries": entries})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
