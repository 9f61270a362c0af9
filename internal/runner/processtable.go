package runner

import (
	"sync"

	"github.com/jrnl/voicejournal/internal/audiotools"
)

// ProcessTable is the cancel path's lookup from entry id to the one live
// child process (if any) the worker is currently waiting on for that entry
// — ffmpeg during normalization or transcribe-one/transcribe-conservative
// during transcription. Grounded on
// internal/audiocore/utils/ffmpeg/manager.go's map[string]*managedProcess
// registry, narrowed here to a single handle per id since this pipeline has
// exactly one active child process per entry at any moment.
type ProcessTable struct {
	mu        sync.RWMutex
	processes map[string]*audiotools.Handle
}

// NewProcessTable builds an empty table.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{processes: make(map[string]*audiotools.Handle)}
}

// Register inserts h under id, to be called by the worker immediately
// before it blocks on h.Wait(), and Unregister immediately after —
// spec.md §5's "inserted by the worker before waiting and removed
// immediately after."
func (t *ProcessTable) Register(id string, h *audiotools.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processes[id] = h
}

// Unregister removes id's entry, if any.
func (t *ProcessTable) Unregister(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.processes, id)
}

// Cancel best-effort kills the live child process registered for id, if
// any is currently running. Returns false when there is nothing to kill
// (the stage isn't currently blocked on a child process) — not an error,
// since finalization still proceeds at the next cancellation check either
// way.
func (t *ProcessTable) Cancel(id string) bool {
	t.mu.RLock()
	h, ok := t.processes[id]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	_ = h.Kill()
	return true
}
