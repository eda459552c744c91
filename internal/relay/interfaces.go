package relay

import (
	"context"
	"errors"
	"time"

	"github.com/pixelfall/tagrelay/internal/history"
)

// ErrPermanentDownload marks a download the image host refuses to serve.
// The URL is recorded in history so it is never retried, and the candidate is
// abandoned without further delivery attempts.
var ErrPermanentDownload = errors.New("image host refuses to serve url")

// Searcher queries the image service for candidates matching a tag, in
// exact-tag-match mode. Pages start at 1; an empty slice means the service is
// out of pages.
type Searcher interface {
	SearchWorks(ctx context.Context, tag string, page int) ([]Candidate, error)
}

// Downloader fetches a variant URL into the file at path. Implementations
// return an error wrapping ErrPermanentDownload when the host refuses the URL
// (as opposed to a transient network failure).
type Downloader interface {
	Download(ctx context.Context, url string, path string) error
}

// Notifier posts to a single webhook endpoint.
type Notifier interface {
	Post(ctx context.Context, hookURL string, content string) error
	PostFile(ctx context.Context, hookURL string, content string, filename string, data []byte) error
}

// Archiver optionally keeps a copy of delivered image bytes.
type Archiver interface {
	Save(ctx context.Context, objectName string, data []byte) (string, error)
}

// Publisher optionally pushes delivery events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// HistoryStore persists the dedup set across runs.
type HistoryStore interface {
	Load(ctx context.Context) (*history.Set, error)
	Save(ctx context.Context, set *history.Set) error
}

// Clock supplies time and delays (useful for testing).
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}
