package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageRunError      Stage = "RUN_ERROR"
	StageRequestStart  Stage = "REQUEST_START"
	StageRequestDone   Stage = "REQUEST_DONE"
	StageRequestError  Stage = "REQUEST_ERROR"
	StageCandidateSkip Stage = "CANDIDATE_SKIP"
	StagePostDone      Stage = "POST_DONE"
	StagePostMissing   Stage = "POST_MISSING"
	StagePostOversize  Stage = "POST_OVERSIZE"
)

// Event captures a single pipeline milestone.
type Event struct {
	// RunID identifies the batch run the event belongs to.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// SubTag scopes request-level events to the search request.
	SubTag string
	// URL optionally names the candidate image involved.
	URL string
	// Bytes carries the delivered payload size for post completions.
	Bytes int64
	// Reason classifies candidate skips (missing_main_tag, seen, ...).
	Reason string
	// Dur captures request execution latency.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageRequestStart, StageRequestDone, StageRequestError, StagePostDone, StagePostMissing, StagePostOversize:
		if e.SubTag == "" {
			return fmt.Errorf("%s requires sub tag", e.Stage)
		}
	case StageCandidateSkip:
		if e.Reason == "" {
			return errors.New("candidate skip requires reason")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
