package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/jrnl/voicejournal/internal/errors"
	"github.com/labstack/echo/v4"
)

func (c *Controller) initAudioRoutes() {
	c.Group.GET("/audio/*", c.serveAudio)
	c.Group.POST("/open-note", c.openNote)
}

// serveAudio implements "GET /audio/<vault-rel>" (spec.md §6), restricted
// to journal/audio/... and rejecting traversal (P4). The controller's
// AudioFS is rooted at <vault>/journal/audio, so the wildcard segment is
// already scoped to the right subtree before validation even runs.
func (c *Controller) serveAudio(ctx echo.Context) error {
	relPath := ctx.Param("*")
	if relPath == "" {
		return HandleError(ctx, fmt.Errorf("missing audio path"), "missing audio path", http.StatusBadRequest)
	}

	absPath, err := c.AudioFS.ValidateRelativePath(relPath)
	if err != nil {
		status := http.StatusForbidden
		if !errors.IsCategory(err, errors.CategoryPathEscape) {
			status = http.StatusBadRequest
		}
		return HandleError(ctx, err, "invalid audio path", status)
	}

	f, err := c.AudioFS.Open(absPath)
	if err != nil {
		return HandleError(ctx, err, "audio file not found", http.StatusNotFound)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return HandleError(ctx, err, "failed to stat audio file", http.StatusInternalServerError)
	}

	http.ServeContent(ctx.Response(), ctx.Request(), filepath.Base(absPath), info.ModTime(), f)
	return nil
}

type openNoteRequest struct {
	EntryID string `json:"entryId"`
	Action  string `json:"action"`
}

// openNote fires the platform-specific "open" command against an entry's
// note (spec.md §1: "a thin wrapper only" around shelling out to
// open/xdg-open — no editor/file-browser logic lives in this process).
func (c *Controller) openNote(ctx echo.Context) error {
	var req openNoteRequest
	if err := ctx.Bind(&req); err != nil {
		return HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	e, err := c.Store.GetEntry(ctx.Request().Context(), req.EntryID)
	if err != nil {
		return HandleError(ctx, err, "entry not found", statusForStoreErr(err))
	}
	if e.NotePath == "" {
		return HandleError(ctx, fmt.Errorf("entry has no note yet"), "entry has no note yet", http.StatusBadRequest)
	}

	absNotePath := filepath.Join(c.Conf.Server.VaultRoot, e.NotePath)

	var target string
	switch req.Action {
	case "finder":
		target = filepath.Dir(absNotePath)
	case "obsidian":
		target = "obsidian://open?path=" + url.QueryEscape(absNotePath)
	default:
		return HandleError(ctx, fmt.Errorf("unknown action %q", req.Action), "unknown action", http.StatusBadRequest)
	}

	if err := openTarget(target); err != nil {
		return HandleError(ctx, err, "failed to open target", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func openTarget(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}
