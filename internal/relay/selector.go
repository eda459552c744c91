package relay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/history"
	"github.com/pixelfall/tagrelay/internal/progress"
)

// DefaultMaxPages bounds pagination against a misbehaving or endless API.
// The search service is consulted one page at a time; hitting the bound is
// treated the same as running out of pages.
const DefaultMaxPages = 100

// Detailer resolves full candidate fields (restriction level, variant URLs)
// that some API generations only expose through a secondary lookup.
type Detailer interface {
	WorkDetail(ctx context.Context, id string) (Candidate, error)
}

// Selector pages through search results and returns the first candidate that
// passes the filter and is absent from history.
type Selector struct {
	searcher Searcher
	detailer Detailer
	maxPages int
	emitter  progress.Emitter
	logger   *zap.Logger
}

// SelectorOption customizes a Selector.
type SelectorOption func(*Selector)

// WithDetailer makes the selector resolve each candidate through a secondary
// detail lookup before filtering. A failed lookup skips that candidate only.
func WithDetailer(d Detailer) SelectorOption {
	return func(s *Selector) { s.detailer = d }
}

// WithMaxPages overrides the pagination bound.
func WithMaxPages(n int) SelectorOption {
	return func(s *Selector) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// NewSelector constructs a Selector.
func NewSelector(searcher Searcher, emitter progress.Emitter, logger *zap.Logger, opts ...SelectorOption) *Selector {
	if emitter == nil {
		emitter = progress.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Selector{
		searcher: searcher,
		maxPages: DefaultMaxPages,
		emitter:  emitter,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the winning candidate for the request, or nil when no page
// yields one. The two termination conditions are independent: "winner found"
// stops all further evaluation immediately, "no more pages" (or the page
// bound) ends the search with no winner. A nil result is an expected
// outcome, not an error.
func (s *Selector) Select(ctx context.Context, runID string, req SearchRequest, policy FilterPolicy, hist *history.Set) (*Candidate, error) {
	for page := 1; page <= s.maxPages; page++ {
		candidates, err := s.searcher.SearchWorks(ctx, req.SubTag, page)
		if err != nil {
			return nil, fmt.Errorf("search %q page %d: %w", req.SubTag, page, err)
		}
		if len(candidates) == 0 {
			break
		}
		for _, candidate := range candidates {
			winner, ok := s.evaluate(ctx, runID, candidate, policy, hist)
			if ok {
				return winner, nil
			}
		}
	}
	return nil, nil
}

// evaluate applies the detail lookup (when configured) and the filter to one
// candidate, emitting a skip event when it is rejected.
func (s *Selector) evaluate(ctx context.Context, runID string, candidate Candidate, policy FilterPolicy, hist *history.Set) (*Candidate, bool) {
	if s.detailer != nil {
		full, err := s.detailer.WorkDetail(ctx, candidate.ID)
		if err != nil {
			s.logger.Debug("skipping candidate with unavailable detail",
				zap.String("id", candidate.ID), zap.Error(err))
			s.emitSkip(runID, candidate, "detail_unavailable")
			return nil, false
		}
		candidate = full
	}
	if ok, reason := Accepts(candidate, policy, hist); !ok {
		s.logger.Debug("skipping candidate",
			zap.String("id", candidate.ID),
			zap.String("reason", string(reason)))
		s.emitSkip(runID, candidate, string(reason))
		return nil, false
	}
	return &candidate, true
}

func (s *Selector) emitSkip(runID string, candidate Candidate, reason string) {
	s.emitter.Emit(progress.Event{
		RunID:  runID,
		TS:     time.Now().UTC(),
		Stage:  progress.StageCandidateSkip,
		URL:    candidate.LargeURL(),
		Reason: reason,
	})
}
