package runner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jrnl/voicejournal/internal/audiotools"
	"github.com/jrnl/voicejournal/internal/datastore"
	"github.com/jrnl/voicejournal/internal/errors"
	"github.com/jrnl/voicejournal/internal/llmclient"
	"github.com/jrnl/voicejournal/internal/note"
	"github.com/jrnl/voicejournal/internal/transcriber"
)

// runEntry drives one leased entry forward, stage by stage, until it parks
// at awaiting_review/awaiting_prompts, reaches a terminal stage, or a step
// fails. Every stage dispatches on what the entry's own fields already
// hold rather than assuming a fixed predecessor stage, because an HTTP
// continue re-queues an entry from awaiting_review or awaiting_prompts and
// the same lease-and-run path must pick up from wherever that entry left
// off (spec.md §4.F's three distinct re-entries into "queued").
func (r *Runner) runEntry(ctx context.Context, entry *datastore.Entry) error {
	if r.checkCancelled(ctx, entry) {
		return nil
	}

	settings, err := r.store.GetSettings(ctx)
	if err != nil {
		return r.fail(ctx, entry.ID, err)
	}

	if entry.NormalizedAudioPath == "" {
		entry, err = r.runNormalize(ctx, entry, settings)
		if err != nil {
			return r.failOrCancel(ctx, entry.ID, err)
		}
		if r.checkCancelled(ctx, entry) {
			return nil
		}
	}

	// Transcription has not happened yet in any prior pass: run it and
	// park at awaiting_review unconditionally, regardless of kind (spec.md
	// §4.F: every kind passes through transcribing -> awaiting_review).
	// RawTranscriptLockedAt's presence from here on is itself the marker
	// that this step has already been passed, so a later pass (reached via
	// an HTTP continue re-queue) falls straight through to the switch
	// below without needing any separate "already reviewed" bookkeeping.
	if entry.RawTranscriptLockedAt == nil {
		entry, err = r.runTranscribe(ctx, entry, settings)
		if err != nil {
			return r.failOrCancel(ctx, entry.ID, err)
		}
		if r.checkCancelled(ctx, entry) {
			return nil
		}
		return r.park(ctx, entry.ID, datastore.StageAwaitingReview, "awaiting transcript review")
	}

	switch entry.Kind {
	case datastore.KindQuickNote, datastore.KindBrainDump:
		return r.runGenerateAndWrite(ctx, entry, settings)

	case datastore.KindDailyReflection:
		if !promptsComplete(entry.PromptAnswers) {
			return r.park(ctx, entry.ID, datastore.StageAwaitingPrompts, "awaiting guided prompt answers")
		}
		return r.runGenerateAndWrite(ctx, entry, settings)

	default:
		return r.fail(ctx, entry.ID, errors.Newf("unknown entry kind %q", entry.Kind).
			Component("runner").
			Category(errors.CategoryValidation).
			Context("id", entry.ID).
			Build())
	}
}

// promptsComplete reports whether every guided prompt in
// datastore.PromptKeys has a non-empty answer by any of its three fields.
func promptsComplete(answers datastore.JSONMap[datastore.PromptAnswer]) bool {
	for _, key := range datastore.PromptKeys {
		a, ok := answers[key]
		if !ok {
			return false
		}
		if a.Text == "" && a.ExtractedText == "" && a.AudioTranscript == "" {
			return false
		}
	}
	return true
}

// checkCancelled finalizes a cooperative cancellation: if the entry has
// cancel_requested set, it removes any normalized WAV already produced,
// transitions to cancelled, and releases the lease, reporting true so the
// caller stops driving this entry further (spec.md §4.F: "kill any child
// process, remove the normalized WAV, mark cancelled, clear lease").
func (r *Runner) checkCancelled(ctx context.Context, entry *datastore.Entry) bool {
	if !entry.CancelRequested {
		return false
	}
	r.processes.Unregister(entry.ID)
	if entry.NormalizedAudioPath != "" {
		if settings, err := r.store.GetSettings(ctx); err == nil {
			_ = os.Remove(note.AudioVaultPath(settings.VaultRoot, filepath.Base(entry.NormalizedAudioPath)))
		}
	}
	if err := r.store.UpdateEntry(ctx, entry.ID, map[string]any{
		"stage":         datastore.StageCancelled,
		"stage_message": "cancelled",
	}); err != nil {
		serviceLogger.Error("failed to finalize cancellation", "id", entry.ID, "error", err)
	}
	if err := r.store.ReleaseLease(ctx, entry.ID); err != nil {
		serviceLogger.Error("failed to release lease after cancellation", "id", entry.ID, "error", err)
	}
	return true
}

// failOrCancel distinguishes a genuine stage failure from a child process
// or LLM call that was killed/aborted because the entry was cancelled
// mid-stage: a cancelled entry finalizes as cancelled, never failed (spec.md
// §5's "tool killed due to cancel -> cancelled, not failed").
func (r *Runner) failOrCancel(ctx context.Context, id string, cause error) error {
	entry, getErr := r.store.GetEntry(ctx, id)
	if getErr == nil && r.checkCancelled(ctx, entry) {
		return nil
	}
	return r.fail(ctx, id, cause)
}

// fail transitions an entry to failed, recording err's message, and
// releases its lease so it does not block future stuck-entry sweeps.
func (r *Runner) fail(ctx context.Context, id string, cause error) error {
	serviceLogger.Error("entry failed", "id", id, "error", cause)
	if err := r.store.UpdateEntry(ctx, id, map[string]any{
		"stage":         datastore.StageFailed,
		"error_message": cause.Error(),
	}); err != nil {
		serviceLogger.Error("failed to record failure", "id", id, "error", err)
	}
	if err := r.store.ReleaseLease(ctx, id); err != nil {
		serviceLogger.Error("failed to release lease after failure", "id", id, "error", err)
	}
	return cause
}

// park transitions an entry to a waiting stage and releases its lease so a
// later HTTP continue can re-queue and re-lease it.
func (r *Runner) park(ctx context.Context, id, stage, message string) error {
	if err := r.store.UpdateEntry(ctx, id, map[string]any{
		"stage":         stage,
		"stage_message": message,
	}); err != nil {
		return err
	}
	return r.store.ReleaseLease(ctx, id)
}

// runNormalize resamples the original upload into the canonical mono
// 16 kHz WAV and probes its duration, recording both on the entry.
func (r *Runner) runNormalize(ctx context.Context, entry *datastore.Entry, settings *datastore.Settings) (*datastore.Entry, error) {
	if err := r.store.UpdateEntry(ctx, entry.ID, map[string]any{
		"stage":         datastore.StageNormalizing,
		"stage_message": "normalizing audio",
	}); err != nil {
		return entry, err
	}
	if err := r.store.Heartbeat(ctx, entry.ID); err != nil {
		return entry, err
	}

	tools := r.audioTools()

	srcPath := filepath.Join(settings.VaultRoot, entry.AudioPath)
	audioFilename := entry.ID + ".wav"
	dstPath := note.AudioVaultPath(settings.VaultRoot, audioFilename)

	handle, err := tools.Normalize(ctx, srcPath, dstPath)
	if err != nil {
		return entry, err
	}
	r.processes.Register(entry.ID, handle)
	waitErr := handle.Wait()
	r.processes.Unregister(entry.ID)
	if waitErr != nil {
		return entry, waitErr
	}

	duration, err := tools.Probe(ctx, dstPath)
	if err != nil {
		return entry, err
	}

	if !settings.KeepAudio {
		_ = os.Remove(srcPath)
	}

	updates := map[string]any{
		"normalized_audio_path": note.AudioVaultRelativePath(audioFilename),
		"audio_duration_sec":    duration,
	}
	if err := r.store.UpdateEntry(ctx, entry.ID, updates); err != nil {
		return entry, err
	}
	return r.store.GetEntry(ctx, entry.ID)
}

// runTranscribe transcribes the normalized WAV and locks the result as the
// entry's immutable raw transcript (I1: locked once, never overwritten).
func (r *Runner) runTranscribe(ctx context.Context, entry *datastore.Entry, settings *datastore.Settings) (*datastore.Entry, error) {
	if err := r.store.UpdateEntry(ctx, entry.ID, map[string]any{
		"stage":         datastore.StageTranscribing,
		"stage_message": "transcribing audio",
	}); err != nil {
		return entry, err
	}
	if err := r.store.Heartbeat(ctx, entry.ID); err != nil {
		return entry, err
	}

	audio := r.audioTools()
	t := transcriber.New(transcriber.Config{
		WhisperPath:  r.cfg.Conf.Tools.WhisperPath,
		ModelName:    settings.WhisperModel,
		ModelPath:    settings.WhisperModelPath,
		ModelsDir:    r.cfg.Conf.Tools.ModelsDir,
		PrimingText:  settings.PrimingText,
		VADEnabled:   settings.VADEnabled,
		VADModelPath: settings.VADModelPath,
		ChunkSeconds: settings.ChunkSeconds,
	}, audio)

	wavPath := note.AudioVaultPath(settings.VaultRoot, filepath.Base(entry.NormalizedAudioPath))
	tempDir := filepath.Join(os.TempDir(), "voicejournal-"+entry.ID)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return entry, errors.New(err).
			Component("runner").
			Category(errors.CategoryFileIO).
			Context("operation", "create_transcribe_temp_dir").
			Context("id", entry.ID).
			Build()
	}

	text, err := t.Transcribe(ctx, wavPath, entry.AudioDurationSec, tempDir, func(h *audiotools.Handle) {
		r.processes.Register(entry.ID, h)
	})
	r.processes.Unregister(entry.ID)
	_ = os.RemoveAll(tempDir)
	if err != nil {
		return entry, err
	}

	if err := r.store.LockRawTranscript(ctx, entry.ID, text); err != nil {
		return entry, err
	}
	return r.store.GetEntry(ctx, entry.ID)
}

// effectiveTranscript prefers a user-edited transcript over the locked raw
// one, the same preference the HTTP review flow offers the user.
func effectiveTranscript(entry *datastore.Entry) string {
	if entry.EditedTranscript != "" {
		return entry.EditedTranscript
	}
	return entry.RawTranscript
}

// runGenerateAndWrite calls the LLM (skipped entirely for quick-note) and
// writes the final note, both idempotent: re-running with already-populated
// GeneratedSections or an unchanged NotePath simply reproduces the same
// deterministic output.
func (r *Runner) runGenerateAndWrite(ctx context.Context, entry *datastore.Entry, settings *datastore.Settings) error {
	if err := r.store.UpdateEntry(ctx, entry.ID, map[string]any{
		"stage":         datastore.StageGenerating,
		"stage_message": "generating AI content",
	}); err != nil {
		return r.fail(ctx, entry.ID, err)
	}
	if err := r.store.Heartbeat(ctx, entry.ID); err != nil {
		return r.fail(ctx, entry.ID, err)
	}

	transcript := effectiveTranscript(entry)

	client := llmclient.New(llmclient.Config{BaseURL: settings.LLMBaseURL, Model: settings.LLMModel})
	result, err := client.Generate(ctx, entry.Kind, transcript, entry.PromptAnswers)
	if err != nil {
		return r.failOrCancel(ctx, entry.ID, err)
	}

	sections := datastore.JSONMap[string]{}
	for k, v := range entry.GeneratedSections {
		sections[k] = v
	}
	switch entry.Kind {
	case datastore.KindBrainDump:
		sections[note.SectionJournal] = result.Content
	case datastore.KindDailyReflection:
		sections[note.SectionAIReflection] = result.Reflection
	}

	entry, err = r.store.GetEntry(ctx, entry.ID)
	if err != nil {
		return r.fail(ctx, entry.ID, err)
	}
	if r.checkCancelled(ctx, entry) {
		return nil
	}

	if err := r.store.UpdateEntry(ctx, entry.ID, map[string]any{
		"generated_sections": sections,
		"stage":              datastore.StageWriting,
		"stage_message":      "writing note",
	}); err != nil {
		return r.fail(ctx, entry.ID, err)
	}
	if err := r.store.Heartbeat(ctx, entry.ID); err != nil {
		return r.fail(ctx, entry.ID, err)
	}

	entry.GeneratedSections = sections
	notePath, mtime, err := note.WriteNote(settings.VaultRoot, entry, transcript, sections)
	if err != nil {
		return r.failOrCancel(ctx, entry.ID, err)
	}

	entry, err = r.store.GetEntry(ctx, entry.ID)
	if err != nil {
		return r.fail(ctx, entry.ID, err)
	}
	if r.checkCancelled(ctx, entry) {
		return nil
	}

	if err := r.store.UpdateEntry(ctx, entry.ID, map[string]any{
		"note_path":     notePath,
		"note_mtime":    mtime,
		"stage":         datastore.StageCompleted,
		"stage_message": "",
	}); err != nil {
		return r.fail(ctx, entry.ID, err)
	}
	return r.store.ReleaseLease(ctx, entry.ID)
}
