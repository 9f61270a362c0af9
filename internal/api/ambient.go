package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initAmbientRoutes mounts /metrics and /healthz, the two endpoints
// SPEC_FULL.md §6 adds beyond spec.md's own HTTP surface table. Neither
// carries auth or CORS middleware: this is a single-user local service and
// the spec's Non-goals explicitly exclude authentication.
func (c *Controller) initAmbientRoutes() {
	c.Echo.GET("/metrics", echo.WrapHandler(c.Metrics.Handler()))
	c.Echo.GET("/healthz", c.healthz)
}

func (c *Controller) healthz(ctx echo.Context) error {
	sqlDB, err := c.Store.DB.DB()
	if err != nil || sqlDB.Ping() != nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]any{"ok": false})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"ok": true})
}
