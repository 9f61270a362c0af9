package api

import "github.com/jrnl/voicejournal/internal/datastore"

// progressRange is the [start, end] a stage maps to on the 0-100 scale
// clients display (spec.md §6 "Progress computation"). Clients show start.
type progressRange struct {
	start, end int
}

var stageProgress = map[string]progressRange{
	datastore.StagePending:         {0, 0},
	datastore.StageQueued:          {0, 5},
	datastore.StageNormalizing:     {5, 15},
	datastore.StageTranscribing:    {15, 60},
	datastore.StageAwaitingReview:  {60, 60},
	datastore.StageAwaitingPrompts: {60, 60},
	datastore.StageGenerating:      {60, 90},
	datastore.StageWriting:         {90, 100},
	datastore.StageCompleted:       {100, 100},
	datastore.StageFailed:          {0, 0},
	datastore.StageCancelRequested: {0, 0},
	datastore.StageCancelled:       {0, 0},
}

// overallProgress returns the displayed progress percentage for a stage;
// unrecognized stages report 0.
func overallProgress(stage string) int {
	r, ok := stageProgress[stage]
	if !ok {
		return 0
	}
	return r.start
}
