package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/progress"
)

func reqFor(subTag string) SearchRequest {
	return SearchRequest{SubTag: subTag, FoundMessage: "found!", MissingMessage: "nothing today"}
}

func TestSelectFirstAcceptedWins(t *testing.T) {
	t.Parallel()

	seen := makeCandidate("seen", "東方", "霊夢")
	winner := makeCandidate("winner", "東方", "霊夢")
	later := makeCandidate("later", "東方", "霊夢")
	searcher := &fakeSearcher{pages: map[int][]Candidate{
		1: {seen, winner, later},
	}}
	hist := emptyHistory()
	hist.Add(seen.LargeURL())

	rec := &recorderEmitter{}
	sel := NewSelector(searcher, rec, zap.NewNop())

	got, err := sel.Select(context.Background(), "run-1", reqFor("霊夢"), basePolicy(), hist)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "winner", got.ID)
	// The winner stops evaluation; only one page was fetched and the
	// candidate after the winner produced no skip event.
	assert.Equal(t, []int{1}, searcher.calls)
	skips := rec.byStage(progress.StageCandidateSkip)
	require.Len(t, skips, 1)
	assert.Equal(t, "seen", skips[0].Reason)
}

func TestSelectSpansPages(t *testing.T) {
	t.Parallel()

	offTopic := makeCandidate("off", "別作品", "霊夢")
	winner := makeCandidate("winner", "東方", "霊夢")
	searcher := &fakeSearcher{pages: map[int][]Candidate{
		1: {offTopic},
		2: {winner},
	}}

	sel := NewSelector(searcher, nil, zap.NewNop())
	got, err := sel.Select(context.Background(), "run-1", reqFor("霊夢"), basePolicy(), emptyHistory())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []int{1, 2}, searcher.calls)
}

func TestSelectStopsOnEmptyPage(t *testing.T) {
	t.Parallel()

	rejected := makeCandidate("r", "別作品", "霊夢")
	searcher := &fakeSearcher{pages: map[int][]Candidate{1: {rejected}}}

	sel := NewSelector(searcher, nil, zap.NewNop())
	got, err := sel.Select(context.Background(), "run-1", reqFor("霊夢"), basePolicy(), emptyHistory())
	require.NoError(t, err)
	assert.Nil(t, got)
	// Page 2 came back empty, so page 3 was never requested.
	assert.Equal(t, []int{1, 2}, searcher.calls)
}

func TestSelectHonorsPageBound(t *testing.T) {
	t.Parallel()

	rejected := makeCandidate("r", "別作品", "霊夢")
	pages := make(map[int][]Candidate)
	for p := 1; p <= 10; p++ {
		pages[p] = []Candidate{rejected}
	}
	searcher := &fakeSearcher{pages: pages}

	sel := NewSelector(searcher, nil, zap.NewNop(), WithMaxPages(3))
	got, err := sel.Select(context.Background(), "run-1", reqFor("霊夢"), basePolicy(), emptyHistory())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []int{1, 2, 3}, searcher.calls)
}

func TestSelectSearchErrorPropagates(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{err: errors.New("api unavailable")}
	sel := NewSelector(searcher, nil, zap.NewNop())

	_, err := sel.Select(context.Background(), "run-1", reqFor("霊夢"), basePolicy(), emptyHistory())
	assert.Error(t, err)
}

type fakeDetailer struct {
	details map[string]Candidate
	errIDs  map[string]bool
}

func (f *fakeDetailer) WorkDetail(_ context.Context, id string) (Candidate, error) {
	if f.errIDs[id] {
		return Candidate{}, errors.New("detail unavailable")
	}
	return f.details[id], nil
}

func TestSelectDetailLookupReplacesCandidate(t *testing.T) {
	t.Parallel()

	// The search row looks fine, but the detail reveals a restriction.
	shallow := makeCandidate("1", "東方", "霊夢")
	full := shallow
	full.Restriction = RestrictionR18

	searcher := &fakeSearcher{pages: map[int][]Candidate{1: {shallow}}}
	rec := &recorderEmitter{}
	sel := NewSelector(searcher, rec, zap.NewNop(),
		WithDetailer(&fakeDetailer{details: map[string]Candidate{"1": full}}))

	got, err := sel.Select(context.Background(), "run-1", reqFor("霊夢"), basePolicy(), emptyHistory())
	require.NoError(t, err)
	assert.Nil(t, got)
	skips := rec.byStage(progress.StageCandidateSkip)
	require.Len(t, skips, 1)
	assert.Equal(t, string(SkipR18), skips[0].Reason)
}

func TestSelectDetailFailureSkipsOnlyThatCandidate(t *testing.T) {
	t.Parallel()

	broken := makeCandidate("broken", "東方", "霊夢")
	winner := makeCandidate("winner", "東方", "霊夢")
	searcher := &fakeSearcher{pages: map[int][]Candidate{1: {broken, winner}}}
	rec := &recorderEmitter{}
	sel := NewSelector(searcher, rec, zap.NewNop(),
		WithDetailer(&fakeDetailer{
			details: map[string]Candidate{"winner": winner},
			errIDs:  map[string]bool{"broken": true},
		}))

	got, err := sel.Select(context.Background(), "run-1", reqFor("霊夢"), basePolicy(), emptyHistory())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "winner", got.ID)
	skips := rec.byStage(progress.StageCandidateSkip)
	require.Len(t, skips, 1)
	assert.Equal(t, "detail_unavailable", skips[0].Reason)
}
