package handlers

import (
	"sort"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/utils"
)

// RouteInfo describes one registered route.
type RouteInfo struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Handler string `json:"handler"`
}

// RouteTable lists every route registered on the engine, ordered by path then method.
func RouteTable(engine *gin.Engine) []RouteInfo {
	routes := engine.Routes()
	out := make([]RouteInfo, 0, len(routes))
	for _, r := range routes {
		out = append(out, RouteInfo{Method: r.Method, Path: r.Path, Handler: r.Handler})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// DebugHandler exposes development-only introspection.
type DebugHandler struct {
	Engine *gin.Engine
}

// NewDebugHandler creates a new DebugHandler.
func NewDebugHandler(engine *gin.Engine) *DebugHandler {
	return &DebugHandler{Engine: engine}
}

// GetRoutes returns the route table.
func (h *DebugHandler) GetRoutes(c *gin.Context) {
	utils.Success(c, "Routes fetched successfully", RouteTable(h.Engine))
}
