package pipeline

import (
	"time"
)

// Stage names, also used as the stage metric label.
const (
	StageFetch      = "fetch"
	StageSplit      = "split"
	StagePolygonize = "polygonize"
	StageTiles      = "tiles"
	StagePublish    = "publish"
)

// Outcome summarizes how a stage went.
type Outcome string

const (
	// OutcomeSuccess means every unit of work succeeded.
	OutcomeSuccess Outcome = "success"
	// OutcomePartial means some units succeeded and some were skipped or failed.
	OutcomePartial Outcome = "partial"
	// OutcomeFailure means the stage produced nothing because of errors.
	OutcomeFailure Outcome = "failure"
	// OutcomeSkipped means the stage did not run, or every unit was empty.
	OutcomeSkipped Outcome = "skipped"
)

// StageResult reports one stage. Units are months, except for fetch (one
// unit, the store) and publish (config plus viewer).
type StageResult struct {
	Stage     string
	Outcome   Outcome
	Processed int
	Succeeded int
	Skipped   int
	Failed    int
	Duration  time.Duration
	Err       error
}

func (r *StageResult) settle() {
	switch {
	case r.Err != nil && r.Succeeded == 0:
		r.Outcome = OutcomeFailure
	case r.Failed == 0 && r.Skipped == 0:
		r.Outcome = OutcomeSuccess
	case r.Succeeded > 0:
		r.Outcome = OutcomePartial
	case r.Failed > 0:
		r.Outcome = OutcomeFailure
	default:
		r.Outcome = OutcomeSkipped
	}
}

// LogAttrs renders the result as slog key/value pairs.
func (r StageResult) LogAttrs() []any {
	attrs := []any{
		"stage", r.Stage,
		"outcome", string(r.Outcome),
		"processed", r.Processed,
		"succeeded", r.Succeeded,
		"skipped", r.Skipped,
		"failed", r.Failed,
		"duration", r.Duration.String(),
	}
	if r.Err != nil {
		attrs = append(attrs, "error", r.Err)
	}
	return attrs
}

// Summary is the outcome of a full run.
type Summary struct {
	Stages    []StageResult
	Samples   int
	Tables    int
	Documents int
	Archives  int
	Layers    []string
	Elapsed   time.Duration
}

// Stage returns the result for the named stage, if it ran.
func (s Summary) Stage(name string) (StageResult, bool) {
	for _, r := range s.Stages {
		if r.Stage == name {
			return r, true
		}
	}
	return StageResult{}, false
}
