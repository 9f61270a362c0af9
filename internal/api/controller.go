// Package api implements the HTTP facade (spec.md §4.G / SPEC_FULL.md
// §4.G): a thin RPC layer over the store and job runner built on
// github.com/labstack/echo/v4, mirroring the teacher's api/v2 Controller
// shape — an echo.Group plus dependencies as struct fields, grouped
// init*Routes registration functions, and a shared HandleError helper.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jrnl/voicejournal/internal/conf"
	"github.com/jrnl/voicejournal/internal/datastore"
	"github.com/jrnl/voicejournal/internal/logging"
	"github.com/jrnl/voicejournal/internal/observability/metrics"
	"github.com/jrnl/voicejournal/internal/runner"
	"github.com/jrnl/voicejournal/internal/securefs"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gocache "github.com/patrickmn/go-cache"
)

var serviceLogger = logging.ForService("api")

// Controller wires the HTTP facade to the store, runner and ambient
// config, the way the teacher's api/v2.Controller wires a Group to its
// own dependencies.
type Controller struct {
	Echo    *echo.Echo
	Group   *echo.Group
	Store   *datastore.Store
	Runner  *runner.Runner
	Conf    *conf.Settings
	AudioFS *securefs.SecureFS
	Metrics *metrics.Metrics

	cache *gocache.Cache
}

// New builds a Controller with every route registered. vaultRoot's
// journal/audio subdirectory is the sandbox audioFS confines GET
// /audio/<vault-rel> requests to.
func New(store *datastore.Store, rn *runner.Runner, cfg *conf.Settings, audioFS *securefs.SecureFS, m *metrics.Metrics) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	c := &Controller{
		Echo:    e,
		Store:   store,
		Runner:  rn,
		Conf:    cfg,
		AudioFS: audioFS,
		Metrics: m,
		cache:   gocache.New(5*time.Second, 30*time.Second),
	}

	c.Group = e.Group("")
	c.initEntryRoutes()
	c.initSettingsRoutes()
	c.initPrerequisiteRoutes()
	c.initAudioRoutes()
	c.initAmbientRoutes()

	return c
}

// Start begins serving on addr; blocks until the listener stops.
func (c *Controller) Start(addr string) error {
	serviceLogger.Info("http facade listening", "addr", addr)
	return c.Echo.Start(addr)
}

// Shutdown gracefully drains in-flight requests, following the teacher's
// context-bounded shutdown convention.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.Echo.Shutdown(ctx)
}

// invalidateListCache drops cached list/search responses after any entry
// mutation, per SPEC_FULL.md §4.G's "invalidated on entry mutation".
func (c *Controller) invalidateListCache() {
	c.cache.Flush()
}

// ErrorResponse is the JSON body of every non-2xx response, matching the
// teacher's api/v2 {"error": message} convention.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleError logs the full diagnostic and writes the caller-facing
// message at the given status, following api/v2's HandleError(ctx, err,
// message, status) convention.
func HandleError(ctx echo.Context, err error, message string, status int) error {
	serviceLogger.Error(message, "error", err, "path", ctx.Request().URL.Path, "status", status)
	return ctx.JSON(status, ErrorResponse{Error: message})
}

func statusForStoreErr(err error) int {
	switch {
	case err == datastore.ErrEntryNotFound, err == datastore.ErrLinkNotFound:
		return http.StatusNotFound
	case err == datastore.ErrTranscriptLocked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
