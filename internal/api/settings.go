package api

import (
	"net/http"
	"strconv"

	"github.com/jrnl/voicejournal/internal/conf"
	"github.com/jrnl/voicejournal/internal/datastore"
	"github.com/labstack/echo/v4"
)

func (c *Controller) initSettingsRoutes() {
	c.Group.GET("/settings", c.getSettings)
	c.Group.PATCH("/settings", c.patchSettings)
}

// settingsResponse maps internal/datastore.Settings' Go field names to the
// camelCase keys the spec's HTTP surface fixes ("camelCase <-> snake_case
// mapping fixed").
type settingsResponse struct {
	VaultRoot        string  `json:"vaultRoot"`
	WhisperModel     string  `json:"whisperModel"`
	WhisperModelPath string  `json:"whisperModelPath"`
	PrimingText      string  `json:"primingText"`
	LLMBaseURL       string  `json:"llmBaseUrl"`
	LLMModel         string  `json:"llmModel"`
	KeepAudio        bool    `json:"keepAudio"`
	DefaultTimezone  string  `json:"defaultTimezone"`
	UserName         string  `json:"userName"`
	VADEnabled       bool    `json:"vadEnabled"`
	VADModelPath     string  `json:"vadModelPath"`
	ChunkSeconds     float64 `json:"chunkSeconds"`
}

func toSettingsResponse(s *datastore.Settings) settingsResponse {
	return settingsResponse{
		VaultRoot:        s.VaultRoot,
		WhisperModel:     s.WhisperModel,
		WhisperModelPath: s.WhisperModelPath,
		PrimingText:      s.PrimingText,
		LLMBaseURL:       s.LLMBaseURL,
		LLMModel:         s.LLMModel,
		KeepAudio:        s.KeepAudio,
		DefaultTimezone:  s.DefaultTimezone,
		UserName:         s.UserName,
		VADEnabled:       s.VADEnabled,
		VADModelPath:     s.VADModelPath,
		ChunkSeconds:     s.ChunkSeconds,
	}
}

func (c *Controller) getSettings(ctx echo.Context) error {
	s, err := c.Store.GetSettings(ctx.Request().Context())
	if err != nil {
		return HandleError(ctx, err, "failed to load settings", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, toSettingsResponse(s))
}

func (c *Controller) patchSettings(ctx echo.Context) error {
	var req settingsResponse
	current, err := c.Store.GetSettings(ctx.Request().Context())
	if err != nil {
		return HandleError(ctx, err, "failed to load settings", http.StatusInternalServerError)
	}
	req = toSettingsResponse(current)
	if err := ctx.Bind(&req); err != nil {
		return HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	if err := conf.ValidatePath(req.VaultRoot); err != nil {
		return HandleError(ctx, err, "invalid vaultRoot: "+err.Error(), http.StatusBadRequest)
	}
	if err := conf.ValidateURL(req.LLMBaseURL); err != nil {
		return HandleError(ctx, err, "invalid llmBaseUrl: "+err.Error(), http.StatusBadRequest)
	}
	if err := conf.ValidatePositiveFloat(strconv.FormatFloat(req.ChunkSeconds, 'f', -1, 64)); err != nil {
		return HandleError(ctx, err, "invalid chunkSeconds: "+err.Error(), http.StatusBadRequest)
	}

	updated := &datastore.Settings{
		VaultRoot:        req.VaultRoot,
		WhisperModel:     req.WhisperModel,
		WhisperModelPath: req.WhisperModelPath,
		PrimingText:      req.PrimingText,
		LLMBaseURL:       req.LLMBaseURL,
		LLMModel:         req.LLMModel,
		KeepAudio:        req.KeepAudio,
		DefaultTimezone:  req.DefaultTimezone,
		UserName:         req.UserName,
		VADEnabled:       req.VADEnabled,
		VADModelPath:     req.VADModelPath,
		ChunkSeconds:     req.ChunkSeconds,
	}
	if err := c.Store.UpdateSettings(ctx.Request().Context(), updated); err != nil {
		return HandleError(ctx, err, "failed to update settings", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, toSettingsResponse(updated))
}
