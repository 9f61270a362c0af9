// Package runner drives the single-worker job pipeline (spec.md §4.F): a
// ticker loop that recovers stuck entries, leases the oldest queued entry,
// and runs it forward through normalization, transcription, optional LLM
// generation, and note writing, parking at awaiting_review/awaiting_prompts
// for HTTP-driven continuation and honoring cooperative cancellation.
package runner

import (
	"context"
	"time"

	"github.com/jrnl/voicejournal/internal/audiotools"
	"github.com/jrnl/voicejournal/internal/conf"
	"github.com/jrnl/voicejournal/internal/datastore"
	"github.com/jrnl/voicejournal/internal/errors"
	"github.com/jrnl/voicejournal/internal/logging"
)

var serviceLogger = logging.ForService("runner")

const defaultHeartbeatTimeout = 5 * time.Minute

// Config wires the runner to its dependencies. WorkerID is a stable
// identity string the CAS lease compares against, so the same worker can
// refresh its own lease across ticks (spec.md §4.F step 3). TickInterval
// and HeartbeatTimeout default from Conf.Runner (seconds) when zero.
type Config struct {
	WorkerID         string
	TickInterval     time.Duration
	HeartbeatTimeout time.Duration
	Conf             conf.Settings
}

// Runner owns the tick loop, the process table, and a reference to the
// store it drives entries through.
type Runner struct {
	cfg       Config
	store     *datastore.Store
	clock     Clock
	processes *ProcessTable
	stop      chan struct{}
	done      chan struct{}
}

// New builds a Runner. clock may be RealClock{} or a fake for tests.
func New(store *datastore.Store, cfg Config, clock Clock) *Runner {
	if cfg.TickInterval <= 0 {
		if cfg.Conf.Runner.TickInterval > 0 {
			cfg.TickInterval = time.Duration(cfg.Conf.Runner.TickInterval) * time.Second
		} else {
			cfg.TickInterval = time.Second
		}
	}
	if cfg.HeartbeatTimeout <= 0 {
		if cfg.Conf.Runner.HeartbeatTimeout > 0 {
			cfg.HeartbeatTimeout = time.Duration(cfg.Conf.Runner.HeartbeatTimeout) * time.Second
		} else {
			cfg.HeartbeatTimeout = defaultHeartbeatTimeout
		}
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Runner{
		cfg:       cfg,
		store:     store,
		clock:     clock,
		processes: NewProcessTable(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run drives the tick loop until Stop is called or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		default:
		}

		if err := r.RunOnce(ctx); err != nil {
			serviceLogger.Error("tick failed", "error", err)
		}

		r.clock.Sleep(r.cfg.TickInterval)
	}
}

// Stop signals Run to exit and blocks until it has.
func (r *Runner) Stop() {
	close(r.stop)
	<-r.done
}

// RunOnce performs one tick: recover stuck entries, finalize entries that
// were cancelled while still queued, then lease and run at most one queued
// entry forward.
func (r *Runner) RunOnce(ctx context.Context) error {
	if err := r.recoverStuck(ctx); err != nil {
		return err
	}

	// An entry cancelled while queued is never leased again, so its
	// cancellation is finalized here instead of inside runEntry.
	var cancelled []datastore.Entry
	if err := r.store.DB.WithContext(ctx).
		Where("stage = ?", datastore.StageCancelRequested).
		Find(&cancelled).Error; err != nil {
		return err
	}
	for i := range cancelled {
		r.checkCancelled(ctx, &cancelled[i])
	}

	entry, ok, err := r.leaseNext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	return r.runEntry(ctx, entry)
}

// recoverStuck resets every running-stage entry whose heartbeat has gone
// stale back to queued (spec.md §4.F step 1); the whole stage re-runs from
// scratch next time it is leased, since every stage is idempotent.
func (r *Runner) recoverStuck(ctx context.Context) error {
	stuck, err := r.store.ListStuck(ctx, r.cfg.HeartbeatTimeout)
	if err != nil {
		return err
	}
	for _, e := range stuck {
		serviceLogger.Warn("recovering stuck entry", "id", e.ID, "stage", e.Stage)
		if err := r.store.UpdateEntry(ctx, e.ID, map[string]any{
			"stage":         datastore.StageQueued,
			"stage_message": "recovered after a stale heartbeat",
			"locked_by":     "",
			"locked_at":     nil,
			"heartbeat_at":  nil,
		}); err != nil {
			return err
		}
	}
	return nil
}

// leaseNext fetches the oldest queued entry and attempts to lease it.
// Returns ok=false if there is no queued work or another worker beat this
// one to the lease.
func (r *Runner) leaseNext(ctx context.Context) (*datastore.Entry, bool, error) {
	queued, err := r.store.ListQueued(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(queued) == 0 {
		return nil, false, nil
	}
	candidate := queued[0]

	leased, err := r.store.AcquireLease(ctx, candidate.ID, r.cfg.WorkerID)
	if err != nil {
		return nil, false, err
	}
	if !leased {
		return nil, false, nil
	}

	entry, err := r.store.GetEntry(ctx, candidate.ID)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// audioTools builds the audiotools.Tools view from the ambient bootstrap
// config, used for both normalization and transcription chunking.
func (r *Runner) audioTools() audiotools.Tools {
	return audiotools.Tools{
		FFmpegPath:  r.cfg.Conf.Tools.FFmpegPath,
		FFprobePath: r.cfg.Conf.Tools.FFprobePath,
	}
}

// Continue implements the HTTP `continue` action: it re-queues an entry
// parked at awaiting_review or awaiting_prompts so the next tick's lease
// picks it up and resumes past the point it parked at (spec.md §4.F: "a
// later HTTP continue re-leases and resumes"). Issuing continue against an
// entry that is not currently in an awaiting stage is a no-op (B3): the
// entry is left exactly as it was.
func (r *Runner) Continue(ctx context.Context, id string) error {
	entry, err := r.store.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if entry.Stage != datastore.StageAwaitingReview && entry.Stage != datastore.StageAwaitingPrompts {
		return nil
	}
	return r.store.UpdateEntry(ctx, id, map[string]any{"stage": datastore.StageQueued})
}

// Cancel implements the HTTP `cancel` action (spec.md §5): it is only
// accepted while the entry is in one of the actively-running or
// still-queued stages, stamps cancel_requested, and best-effort kills any
// live child process registered for this entry. Finalization itself
// happens on the worker's next cancellation check: inside runEntry for an
// entry it is driving, or at the start of the next tick for one that was
// still queued.
func (r *Runner) Cancel(ctx context.Context, id string) error {
	entry, err := r.store.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if !cancellableStage(entry.Stage) {
		return errors.Newf("cannot cancel entry in stage %q", entry.Stage).
			Component("runner").
			Category(errors.CategoryState).
			Context("id", id).
			Context("stage", entry.Stage).
			Build()
	}
	if err := r.store.UpdateEntry(ctx, id, map[string]any{
		"cancel_requested": true,
		"stage":            datastore.StageCancelRequested,
	}); err != nil {
		return err
	}
	r.processes.Cancel(id)
	return nil
}

func cancellableStage(stage string) bool {
	switch stage {
	case datastore.StageQueued, datastore.StageNormalizing, datastore.StageTranscribing,
		datastore.StageGenerating, datastore.StageWriting:
		return true
	default:
		return false
	}
}
