package api

import (
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jrnl/voicejournal/internal/datastore"
	"github.com/labstack/echo/v4"
)

func (c *Controller) initPrerequisiteRoutes() {
	c.Group.GET("/prerequisites", c.getPrerequisites)
	c.Group.POST("/validate-path", c.validatePath)
	c.Group.GET("/whisper", c.listWhisperModels)
}

type prerequisiteCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// getPrerequisites probes every external collaborator named in spec.md
// §1's out-of-scope list (ffmpeg, ffprobe, the whisper binary, the LLM
// endpoint), plus free disk space on the vault root.
func (c *Controller) getPrerequisites(ctx echo.Context) error {
	settings, err := c.Store.GetSettings(ctx.Request().Context())
	if err != nil {
		return HandleError(ctx, err, "failed to load settings", http.StatusInternalServerError)
	}

	checks := []prerequisiteCheck{
		probeBinary("ffmpeg", c.Conf.Tools.FFmpegPath),
		probeBinary("ffprobe", c.Conf.Tools.FFprobePath),
		probeBinary("whisper", c.Conf.Tools.WhisperPath),
		probeLLM(settings.LLMBaseURL),
		probeVault(c.Conf.Server.VaultRoot),
	}

	allOK := true
	for _, chk := range checks {
		if !chk.OK {
			allOK = false
			break
		}
	}
	return ctx.JSON(http.StatusOK, map[string]any{"checks": checks, "ok": allOK})
}

func probeBinary(name, configuredPath string) prerequisiteCheck {
	path := configuredPath
	if path == "" {
		resolved, err := exec.LookPath(name)
		if err != nil {
			return prerequisiteCheck{Name: name, OK: false, Detail: "not found on PATH"}
		}
		path = resolved
	}
	if _, err := os.Stat(path); err != nil {
		return prerequisiteCheck{Name: name, OK: false, Detail: err.Error()}
	}
	return prerequisiteCheck{Name: name, OK: true, Detail: path}
}

// probeLLM performs a short-timeout reachability check against the
// configured local LLM endpoint; this is a liveness probe only and
// carries no bearing on the runner's own LLM call, which (per spec.md
// §7) has no application-level timeout.
func probeLLM(baseURL string) prerequisiteCheck {
	if baseURL == "" {
		return prerequisiteCheck{Name: "llm", OK: false, Detail: "no LLM base URL configured"}
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return prerequisiteCheck{Name: "llm", OK: false, Detail: err.Error()}
	}
	defer resp.Body.Close()
	return prerequisiteCheck{Name: "llm", OK: true, Detail: baseURL}
}

func probeVault(vaultRoot string) prerequisiteCheck {
	info, err := os.Stat(vaultRoot)
	if err != nil {
		return prerequisiteCheck{Name: "vault_root", OK: false, Detail: err.Error()}
	}
	if !info.IsDir() {
		return prerequisiteCheck{Name: "vault_root", OK: false, Detail: "not a directory"}
	}
	free, err := datastore.DiskFreeSpaceBytes(vaultRoot)
	if err != nil {
		return prerequisiteCheck{Name: "vault_root", OK: true, Detail: "free space unknown"}
	}
	return prerequisiteCheck{Name: "vault_root", OK: true, Detail: strconv.FormatUint(free/1024/1024, 10) + " MB free"}
}

type pathValidationRequest struct {
	Path string `json:"path"`
}

// validatePath reports whether a candidate vault root exists, is a
// directory, and is writable (spec.md §6: "path exists, is dir,
// writable"), by attempting and immediately removing a probe file.
func (c *Controller) validatePath(ctx echo.Context) error {
	var req pathValidationRequest
	if err := ctx.Bind(&req); err != nil {
		return HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	if req.Path == "" {
		return ctx.JSON(http.StatusOK, map[string]any{"exists": false, "isDir": false, "writable": false})
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		return ctx.JSON(http.StatusOK, map[string]any{"exists": false, "isDir": false, "writable": false})
	}

	writable := false
	if info.IsDir() {
		probe := filepath.Join(req.Path, ".journal-write-probe")
		if f, err := os.Create(probe); err == nil {
			f.Close()
			os.Remove(probe)
			writable = true
		}
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"exists":   true,
		"isDir":    info.IsDir(),
		"writable": writable,
	})
}

// listWhisperModels lists installed speech models under the configured
// models directory (spec.md §6's "list installed speech models").
func (c *Controller) listWhisperModels(ctx echo.Context) error {
	dir := c.Conf.Tools.ModelsDir
	if dir == "" {
		return ctx.JSON(http.StatusOK, map[string]any{"models": []string{}})
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return HandleError(ctx, err, "failed to list models directory", http.StatusInternalServerError)
	}
	models := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".bin") || strings.HasSuffix(name, ".ggml") || strings.HasSuffix(name, ".gguf") {
			models = append(models, name)
		}
	}
	return ctx.JSON(http.StatusOK, map[string]any{"models": models})
}
