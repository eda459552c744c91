package relay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/history"
	"github.com/pixelfall/tagrelay/internal/progress"
)

// WildcardFoundMessage accompanies the synthetic wildcard request that
// reuses the main tag for generic results.
const WildcardFoundMessage = "Today's wildcard is..."

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Orchestrator drives one batch: it loads history, runs select→dispatch for
// every configured request, and persists history exactly once at the end.
type Orchestrator struct {
	selector   *Selector
	dispatcher *Dispatcher
	store      HistoryStore
	idGen      IDGenerator
	clock      Clock
	emitter    progress.Emitter
	logger     *zap.Logger

	policy   FilterPolicy
	requests []SearchRequest
}

// NewOrchestrator constructs an Orchestrator over a fixed request list.
func NewOrchestrator(
	selector *Selector,
	dispatcher *Dispatcher,
	store HistoryStore,
	idGen IDGenerator,
	clock Clock,
	emitter progress.Emitter,
	policy FilterPolicy,
	requests []SearchRequest,
	logger *zap.Logger,
) *Orchestrator {
	if emitter == nil {
		emitter = progress.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		selector:   selector,
		dispatcher: dispatcher,
		store:      store,
		idGen:      idGen,
		clock:      clock,
		emitter:    emitter,
		logger:     logger,
		policy:     policy,
		requests:   requests,
	}
}

// BuildRequests expands configured sub-tag triples into the request list,
// appending the wildcard request (main tag as sub tag, empty missing
// message) when enabled.
func BuildRequests(subTags [][3]string, mainTag string, wildcard bool) []SearchRequest {
	requests := make([]SearchRequest, 0, len(subTags)+1)
	for _, triple := range subTags {
		requests = append(requests, SearchRequest{
			SubTag:         triple[0],
			FoundMessage:   triple[1],
			MissingMessage: triple[2],
		})
	}
	if wildcard {
		requests = append(requests, SearchRequest{
			SubTag:       mainTag,
			FoundMessage: WildcardFoundMessage,
		})
	}
	return requests
}

// Run executes the batch. A failure in one request is reported and never
// prevents remaining requests or the final history save from running; only
// history load/save failures fail the run.
func (o *Orchestrator) Run(ctx context.Context) error {
	runID, err := o.idGen.NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	logger := o.logger.With(zap.String("run_id", runID))

	hist, err := o.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	logger.Info("starting batch",
		zap.Int("requests", len(o.requests)),
		zap.Int("history_size", hist.Len()))
	o.emit(progress.Event{RunID: runID, Stage: progress.StageRunStart})

	for _, req := range o.requests {
		o.processRequest(ctx, runID, req, hist, logger)
	}

	if err := o.store.Save(ctx, hist); err != nil {
		o.emit(progress.Event{RunID: runID, Stage: progress.StageRunError, Note: err.Error()})
		return fmt.Errorf("save history: %w", err)
	}
	logger.Info("batch finished", zap.Int("history_size", hist.Len()))
	o.emit(progress.Event{RunID: runID, Stage: progress.StageRunDone})
	return nil
}

// processRequest isolates one request end to end. Errors surfaced by the
// search or download service are logged and reported, then swallowed so the
// loop proceeds to the next request.
func (o *Orchestrator) processRequest(ctx context.Context, runID string, req SearchRequest, hist *history.Set, logger *zap.Logger) {
	start := o.clock.Now()
	o.emit(progress.Event{RunID: runID, Stage: progress.StageRequestStart, SubTag: req.SubTag})

	candidate, err := o.selector.Select(ctx, runID, req, o.policy, hist)
	if err == nil {
		if candidate == nil {
			logger.Warn("no image found for main tag, sub tag",
				zap.String("main_tag", o.policy.MainTag),
				zap.String("sub_tag", req.SubTag))
		}
		err = o.dispatcher.Dispatch(ctx, runID, candidate, req, o.policy, hist)
	}

	dur := o.clock.Now().Sub(start)
	if err != nil {
		logger.Error("request failed",
			zap.String("sub_tag", req.SubTag), zap.Error(err))
		o.emit(progress.Event{RunID: runID, Stage: progress.StageRequestError, SubTag: req.SubTag, Dur: dur, Note: err.Error()})
		return
	}
	o.emit(progress.Event{RunID: runID, Stage: progress.StageRequestDone, SubTag: req.SubTag, Dur: dur})
}

func (o *Orchestrator) emit(evt progress.Event) {
	evt.TS = o.clock.Now()
	o.emitter.Emit(evt)
}
