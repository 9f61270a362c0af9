package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jrnl/voicejournal/internal/datastore"
	"github.com/jrnl/voicejournal/internal/errors"
	"github.com/jrnl/voicejournal/internal/note"
	"github.com/labstack/echo/v4"
)

func (c *Controller) initEntryRoutes() {
	g := c.Group
	g.POST("/entries", c.createEntry)
	g.GET("/entries", c.listEntries)
	g.GET("/entries/search", c.searchEntries)
	g.GET("/entries/:id", c.getEntry)
	g.PATCH("/entries/:id", c.patchEntry)
	g.DELETE("/entries/:id", c.deleteEntry)
	g.POST("/entries/:id/audio", c.uploadAudio)
	g.POST("/entries/:id/cancel", c.cancelEntry)
	g.GET("/entries/:id/links", c.listLinks)
	g.POST("/entries/:id/links", c.createLink)
	g.DELETE("/entries/:id/links", c.deleteLink)
}

// entryResponse is the wire shape for a bare entry (list/search results),
// following the camelCase JSON the spec's HTTP surface names.
type entryResponse struct {
	ID                string                                 `json:"id"`
	EntryType         string                                 `json:"entryType"`
	EntryDate         string                                 `json:"entryDate"`
	Timezone          string                                 `json:"timezone"`
	Stage             string                                 `json:"stage"`
	StageMessage      string                                 `json:"stageMessage,omitempty"`
	ErrorMessage      string                                 `json:"errorMessage,omitempty"`
	CreatedAt         time.Time                              `json:"createdAt"`
	UpdatedAt         time.Time                              `json:"updatedAt"`
	RawTranscript     string                                 `json:"rawTranscript,omitempty"`
	EditedTranscript  string                                 `json:"editedTranscript,omitempty"`
	PromptAnswers     datastore.JSONMap[datastore.PromptAnswer] `json:"promptAnswers,omitempty"`
	GeneratedSections datastore.JSONMap[string]              `json:"generatedSections,omitempty"`
	NotePath          string                                 `json:"notePath,omitempty"`
}

func toEntryResponse(e *datastore.Entry) entryResponse {
	return entryResponse{
		ID:                e.ID,
		EntryType:         e.Kind,
		EntryDate:         e.EntryDate,
		Timezone:          e.Timezone,
		Stage:             e.Stage,
		StageMessage:      e.StageMessage,
		ErrorMessage:      e.ErrorMessage,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
		RawTranscript:     e.RawTranscript,
		EditedTranscript:  e.EditedTranscript,
		PromptAnswers:     e.PromptAnswers,
		GeneratedSections: e.GeneratedSections,
		NotePath:          e.NotePath,
	}
}

// entryDetailResponse adds the computed fields the single-entry read
// returns alongside the entry itself (spec.md §6: "entry + {overallProgress,
// hasExternalEdits, noteContent?}").
type entryDetailResponse struct {
	entryResponse
	OverallProgress  int    `json:"overallProgress"`
	HasExternalEdits bool   `json:"hasExternalEdits"`
	NoteContent      string `json:"noteContent,omitempty"`
}

type createEntryRequest struct {
	EntryType string `json:"entryType"`
	EntryDate string `json:"entryDate"`
	Timezone  string `json:"timezone"`
}

func (c *Controller) createEntry(ctx echo.Context) error {
	var req createEntryRequest
	if err := ctx.Bind(&req); err != nil {
		return HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	if err := validateEntryType(req.EntryType); err != nil {
		return HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}

	tz := req.Timezone
	if tz == "" {
		tz = "Local"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return HandleError(ctx, err, "unknown timezone", http.StatusBadRequest)
	}

	entryDate := req.EntryDate
	if entryDate == "" {
		entryDate = time.Now().In(loc).Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", entryDate); err != nil {
		return HandleError(ctx, err, "entryDate must be YYYY-MM-DD", http.StatusBadRequest)
	}

	e := &datastore.Entry{
		Kind:      req.EntryType,
		Timezone:  tz,
		EntryDate: entryDate,
		Stage:     datastore.StagePending,
	}
	if err := c.Store.CreateEntry(ctx.Request().Context(), e); err != nil {
		return HandleError(ctx, err, "failed to create entry", http.StatusInternalServerError)
	}
	c.invalidateListCache()
	return ctx.JSON(http.StatusCreated, toEntryResponse(e))
}

func validateEntryType(kind string) error {
	switch kind {
	case datastore.KindBrainDump, datastore.KindDailyReflection, datastore.KindQuickNote:
		return nil
	default:
		return errors.Newf("unknown entryType %q", kind).
			Component("api").Category(errors.CategoryValidation).Build()
	}
}

func (c *Controller) listEntries(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	cacheKey := fmt.Sprintf("list:%d:%d", limit, offset)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return ctx.JSON(http.StatusOK, cached)
	}

	entries, err := c.Store.ListRecent(ctx.Request().Context(), limit, offset)
	if err != nil {
		return HandleError(ctx, err, "failed to list entries", http.StatusInternalServerError)
	}

	out := make([]entryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, toEntryResponse(&entries[i]))
	}
	body := map[string]any{"entries": out, "count": len(out)}
	c.cache.SetDefault(cacheKey, body)
	return ctx.JSON(http.StatusOK, body)
}

func (c *Controller) searchEntries(ctx echo.Context) error {
	limit, offset := parsePagination(ctx)
	filters := datastore.SearchFilters{
		Kind:       ctx.QueryParam("type"),
		StageClass: ctx.QueryParam("status"),
		DateFrom:   ctx.QueryParam("from"),
		DateTo:     ctx.QueryParam("to"),
	}
	term := ctx.QueryParam("q")

	cacheKey := fmt.Sprintf("search:%s:%+v:%d:%d", term, filters, limit, offset)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return ctx.JSON(http.StatusOK, cached)
	}

	result, err := c.Store.Search(ctx.Request().Context(), term, filters, limit, offset)
	if err != nil {
		return HandleError(ctx, err, "search failed", http.StatusInternalServerError)
	}

	out := make([]entryResponse, 0, len(result.Entries))
	for i := range result.Entries {
		out = append(out, toEntryResponse(&result.Entries[i]))
	}
	body := map[string]any{"entries": out, "total": result.Total, "hasMore": result.HasMore}
	c.cache.SetDefault(cacheKey, body)
	return ctx.JSON(http.StatusOK, body)
}

func parsePagination(ctx echo.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(ctx.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func (c *Controller) getEntry(ctx echo.Context) error {
	id := ctx.Param("id")
	e, err := c.Store.GetEntry(ctx.Request().Context(), id)
	if err != nil {
		return HandleError(ctx, err, "entry not found", statusForStoreErr(err))
	}

	resp := entryDetailResponse{
		entryResponse:   toEntryResponse(e),
		OverallProgress: overallProgress(e.Stage),
	}

	if e.NotePath != "" {
		notePath := filepath.Join(c.Conf.Server.VaultRoot, e.NotePath)
		if content, err := note.ReadNote(notePath); err == nil {
			resp.NoteContent = content
		}
		if hasEdits, err := note.HasExternalEdits(notePath, e.NoteMtime); err == nil {
			resp.HasExternalEdits = hasEdits
		}
	}

	return ctx.JSON(http.StatusOK, resp)
}

type patchEntryRequest struct {
	EditedTranscript *string                                   `json:"editedTranscript"`
	PromptAnswers    datastore.JSONMap[datastore.PromptAnswer] `json:"promptAnswers"`
	EntryDate        *string                                   `json:"entryDate"`
	EditedSections   datastore.JSONMap[string]                `json:"editedSections"`
	Action           string                                    `json:"action"`
}

func (c *Controller) patchEntry(ctx echo.Context) error {
	id := ctx.Param("id")
	var req patchEntryRequest
	if err := ctx.Bind(&req); err != nil {
		return HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	updates := map[string]any{}
	if req.EditedTranscript != nil {
		updates["edited_transcript"] = *req.EditedTranscript
	}
	if req.PromptAnswers != nil {
		updates["prompt_answers"] = req.PromptAnswers
	}
	if req.EntryDate != nil {
		if _, err := time.Parse("2006-01-02", *req.EntryDate); err != nil {
			return HandleError(ctx, err, "entryDate must be YYYY-MM-DD", http.StatusBadRequest)
		}
		updates["entry_date"] = *req.EntryDate
	}
	if req.EditedSections != nil {
		updates["generated_sections"] = req.EditedSections
	}

	if len(updates) > 0 {
		if err := c.Store.UpdateEntry(ctx.Request().Context(), id, updates); err != nil {
			return HandleError(ctx, err, "failed to update entry", statusForStoreErr(err))
		}
	}

	if req.Action == "continue" {
		if err := c.Runner.Continue(ctx.Request().Context(), id); err != nil {
			return HandleError(ctx, err, "failed to continue entry", statusForStoreErr(err))
		}
	}

	e, err := c.Store.GetEntry(ctx.Request().Context(), id)
	if err != nil {
		return HandleError(ctx, err, "entry not found", statusForStoreErr(err))
	}
	c.invalidateListCache()
	return ctx.JSON(http.StatusOK, toEntryResponse(e))
}

func (c *Controller) deleteEntry(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.Store.DeleteEntry(ctx.Request().Context(), id); err != nil {
		return HandleError(ctx, err, "failed to delete entry", statusForStoreErr(err))
	}
	c.invalidateListCache()
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) cancelEntry(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.Runner.Cancel(ctx.Request().Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.IsCategory(err, errors.CategoryState) {
			status = http.StatusBadRequest
		}
		return HandleError(ctx, err, "cannot cancel entry", status)
	}
	c.invalidateListCache()
	return ctx.NoContent(http.StatusAccepted)
}

// uploadAudio handles the multipart upload named "audio" (spec.md §6),
// validates its MIME prefix, stores it at
// journal/audio/<id>-original<ext>, and queues the entry for processing.
func (c *Controller) uploadAudio(ctx echo.Context) error {
	id := ctx.Param("id")
	e, err := c.Store.GetEntry(ctx.Request().Context(), id)
	if err != nil {
		return HandleError(ctx, err, "entry not found", statusForStoreErr(err))
	}

	fileHeader, err := ctx.FormFile("audio")
	if err != nil {
		return HandleError(ctx, err, "missing audio file field", http.StatusBadRequest)
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		return HandleError(ctx, fmt.Errorf("content-type %q is not audio/*", contentType),
			"uploaded file must be audio", http.StatusBadRequest)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return HandleError(ctx, err, "failed to open upload", http.StatusInternalServerError)
	}
	defer src.Close()

	ext := filepath.Ext(fileHeader.Filename)
	audioFilename := fmt.Sprintf("%s-original%s", id, ext)
	audioRelPath := note.AudioVaultRelativePath(audioFilename)
	audioAbsPath := note.AudioVaultPath(c.Conf.Server.VaultRoot, audioFilename)

	if err := writeUploadedFile(audioAbsPath, src); err != nil {
		return HandleError(ctx, err, "failed to store audio", http.StatusInternalServerError)
	}

	if err := c.Store.UpdateEntry(ctx.Request().Context(), id, map[string]any{
		"audio_path": audioRelPath,
		"stage":      datastore.StageQueued,
	}); err != nil {
		return HandleError(ctx, err, "failed to queue entry", statusForStoreErr(err))
	}

	e, err = c.Store.GetEntry(ctx.Request().Context(), id)
	if err != nil {
		return HandleError(ctx, err, "entry not found", statusForStoreErr(err))
	}
	c.invalidateListCache()
	return ctx.JSON(http.StatusAccepted, toEntryResponse(e))
}

func writeUploadedFile(dst string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}

type linkRequest struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
}

type linkResponse struct {
	SourceID  string    `json:"sourceId"`
	TargetID  string    `json:"targetId"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *Controller) listLinks(ctx echo.Context) error {
	id := ctx.Param("id")
	links, err := c.Store.ListLinks(ctx.Request().Context(), id)
	if err != nil {
		return HandleError(ctx, err, "failed to list links", http.StatusInternalServerError)
	}
	out := make([]linkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, linkResponse{SourceID: l.SourceID, TargetID: l.TargetID, Type: l.Type, CreatedAt: l.CreatedAt})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"links": out})
}

func (c *Controller) createLink(ctx echo.Context) error {
	id := ctx.Param("id")
	var req linkRequest
	if err := ctx.Bind(&req); err != nil {
		return HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	if err := validateLinkType(req.Type); err != nil {
		return HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	}
	if err := c.Store.AddLink(ctx.Request().Context(), id, req.TargetID, req.Type); err != nil {
		return HandleError(ctx, err, "failed to create link", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, linkResponse{SourceID: id, TargetID: req.TargetID, Type: req.Type, CreatedAt: time.Now().UTC()})
}

func (c *Controller) deleteLink(ctx echo.Context) error {
	id := ctx.Param("id")
	var req linkRequest
	if err := ctx.Bind(&req); err != nil {
		return HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	if err := c.Store.RemoveLink(ctx.Request().Context(), id, req.TargetID, req.Type); err != nil {
		return HandleError(ctx, err, "failed to delete link", statusForStoreErr(err))
	}
	return ctx.NoContent(http.StatusNoContent)
}

func validateLinkType(t string) error {
	switch t {
	case datastore.LinkRelated, datastore.LinkFollowup, datastore.LinkReference:
		return nil
	default:
		return errors.Newf("unknown link type %q", t).
			Component("api").Category(errors.CategoryValidation).Build()
	}
}
