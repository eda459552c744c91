package relay

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pixelfall/tagrelay/internal/history"
	"github.com/pixelfall/tagrelay/internal/progress"
)

// Shared fakes for the pipeline tests.

func makeCandidate(id, mainTag, subTag string) Candidate {
	return Candidate{
		ID:   id,
		Tags: []string{mainTag, subTag},
		Variants: map[string]string{
			VariantLarge:   "https://i.pximg.net/large/" + id + ".jpg",
			VariantPx480mw: "https://i.pximg.net/480mw/" + id + ".jpg",
		},
	}
}

type fakeSearcher struct {
	pages map[int][]Candidate
	err   error
	calls []int
}

func (f *fakeSearcher) SearchWorks(_ context.Context, _ string, page int) ([]Candidate, error) {
	f.calls = append(f.calls, page)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[page], nil
}

type fakeDownloader struct {
	payloads  map[string][]byte
	permanent map[string]bool
	err       error
	requested []string
}

func (f *fakeDownloader) Download(_ context.Context, url string, path string) error {
	f.requested = append(f.requested, url)
	if f.err != nil {
		return f.err
	}
	if f.permanent[url] {
		return fmt.Errorf("GET %s: status 404: %w", url, ErrPermanentDownload)
	}
	payload, ok := f.payloads[url]
	if !ok {
		return fmt.Errorf("no payload configured for %s", url)
	}
	return os.WriteFile(path, payload, 0o600)
}

type postedMessage struct {
	Hook     string
	Content  string
	Filename string
	Data     []byte
}

type fakeNotifier struct {
	posts     []postedMessage
	failHooks map[string]bool
}

func (f *fakeNotifier) Post(_ context.Context, hookURL string, content string) error {
	if f.failHooks[hookURL] {
		return fmt.Errorf("webhook %s: status 500", hookURL)
	}
	f.posts = append(f.posts, postedMessage{Hook: hookURL, Content: content})
	return nil
}

func (f *fakeNotifier) PostFile(_ context.Context, hookURL string, content string, filename string, data []byte) error {
	if f.failHooks[hookURL] {
		return fmt.Errorf("webhook %s: status 500", hookURL)
	}
	f.posts = append(f.posts, postedMessage{Hook: hookURL, Content: content, Filename: filename, Data: data})
	return nil
}

type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	stride time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.stride)
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
}

type fakeArchiver struct {
	saved map[string][]byte
	err   error
}

func (f *fakeArchiver) Save(_ context.Context, objectName string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[objectName] = data
	return "file:///archive/" + objectName, nil
}

type recorderEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorderEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorderEmitter) byStage(stage progress.Stage) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, evt := range r.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

type fakeIDGen struct {
	err error
}

func (f *fakeIDGen) NewID() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "run-1", nil
}

func emptyHistory() *history.Set {
	return history.NewSet()
}
