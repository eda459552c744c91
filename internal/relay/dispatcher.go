package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/history"
	"github.com/pixelfall/tagrelay/internal/progress"
)

// DefaultMaxUploadBytes matches Discord's 8 MiB attachment ceiling.
const DefaultMaxUploadBytes = 8 << 20

// DefaultPostDelay spaces out webhook posts to respect rate limits. Applied
// once per dispatch, not once per target.
const DefaultPostDelay = 5 * time.Second

// DispatcherConfig controls delivery behavior.
type DispatcherConfig struct {
	HookURLs       []string
	MaxUploadBytes int64
	PostDelay      time.Duration
	TempDir        string
	PublishTopic   string
}

// DeliveryEvent is the payload published after a successful delivery.
type DeliveryEvent struct {
	RunID    string    `json:"run_id"`
	SubTag   string    `json:"sub_tag"`
	URL      string    `json:"url"`
	Bytes    int64     `json:"bytes"`
	PostedAt time.Time `json:"posted_at"`
}

// Dispatcher downloads the winning candidate's binary, honoring the size
// ceiling with a fallback variant, posts to every configured webhook, and
// records the outcome in history.
type Dispatcher struct {
	downloader Downloader
	notifier   Notifier
	clock      Clock
	archiver   Archiver
	publisher  Publisher
	emitter    progress.Emitter
	logger     *zap.Logger
	cfg        DispatcherConfig
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithArchiver keeps a copy of every delivered image in the given store.
func WithArchiver(a Archiver) DispatcherOption {
	return func(d *Dispatcher) { d.archiver = a }
}

// WithPublisher pushes a DeliveryEvent to the broker after each delivery.
func WithPublisher(p Publisher) DispatcherOption {
	return func(d *Dispatcher) { d.publisher = p }
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(
	downloader Downloader,
	notifier Notifier,
	clock Clock,
	emitter progress.Emitter,
	cfg DispatcherConfig,
	logger *zap.Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.PostDelay <= 0 {
		cfg.PostDelay = DefaultPostDelay
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if emitter == nil {
		emitter = progress.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		downloader: downloader,
		notifier:   notifier,
		clock:      clock,
		emitter:    emitter,
		logger:     logger,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers the winning candidate, or posts the request's missing
// message when candidate is nil. Once a candidate was chosen its large URL
// always ends up in history, whether the delivery succeeded, the download
// was refused, or the image stayed oversized; re-selecting it every run
// would otherwise be inevitable.
func (d *Dispatcher) Dispatch(ctx context.Context, runID string, candidate *Candidate, req SearchRequest, policy FilterPolicy, hist *history.Set) error {
	if candidate == nil {
		d.postMissing(ctx, runID, req)
		return nil
	}
	largeURL := candidate.LargeURL()

	tmpPath, err := d.tempPath(largeURL)
	if err != nil {
		return err
	}
	// The temp file is scoped to this call: removed on every exit path.
	defer func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			d.logger.Warn("temp file cleanup failed", zap.String("path", tmpPath), zap.Error(rmErr))
		}
	}()

	size, err := d.fetchWithinCeiling(ctx, candidate, policy, largeURL, tmpPath, hist)
	if err != nil {
		return err
	}
	if size < 0 {
		// Permanent download failure; history already updated.
		return nil
	}

	if size > d.cfg.MaxUploadBytes {
		d.logger.Error("fallback variant still too large, cannot upload",
			zap.String("url", candidate.Variants[policy.FallbackVariant]),
			zap.Int64("bytes", size))
		d.emit(progress.Event{RunID: runID, Stage: progress.StagePostOversize, SubTag: req.SubTag, URL: largeURL, Bytes: size})
		hist.Add(largeURL)
		return nil
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		hist.Add(largeURL)
		return fmt.Errorf("read downloaded image: %w", err)
	}

	if req.FoundMessage != "" {
		for _, hook := range d.cfg.HookURLs {
			if postErr := d.notifier.PostFile(ctx, hook, req.FoundMessage, path.Base(tmpPath), data); postErr != nil {
				d.logger.Warn("webhook post failed",
					zap.String("hook", hook), zap.Error(postErr))
			}
		}
	}
	d.clock.Sleep(d.cfg.PostDelay)

	d.emit(progress.Event{RunID: runID, Stage: progress.StagePostDone, SubTag: req.SubTag, URL: largeURL, Bytes: size})
	d.archiveAndPublish(ctx, runID, req, largeURL, data)
	hist.Add(largeURL)
	return nil
}

// fetchWithinCeiling downloads the large variant and, when it exceeds the
// ceiling, discards it and downloads the fallback variant to the same path.
// It returns the final size, or -1 when a permanent download failure was
// absorbed (and recorded in history).
func (d *Dispatcher) fetchWithinCeiling(ctx context.Context, candidate *Candidate, policy FilterPolicy, largeURL, tmpPath string, hist *history.Set) (int64, error) {
	size, err := d.download(ctx, largeURL, tmpPath, largeURL, hist)
	if err != nil || size < 0 {
		return size, err
	}
	if size <= d.cfg.MaxUploadBytes {
		return size, nil
	}
	if rmErr := os.Remove(tmpPath); rmErr != nil {
		return 0, fmt.Errorf("discard oversized download: %w", rmErr)
	}
	fallbackURL := candidate.Variants[policy.FallbackVariant]
	return d.download(ctx, fallbackURL, tmpPath, largeURL, hist)
}

// download fetches url into tmpPath. A permanent refusal records largeURL in
// history so the image is never retried, and returns -1 with no error.
func (d *Dispatcher) download(ctx context.Context, url, tmpPath, largeURL string, hist *history.Set) (int64, error) {
	if err := d.downloader.Download(ctx, url, tmpPath); err != nil {
		if errors.Is(err, ErrPermanentDownload) {
			d.logger.Warn("image host refused download, recording to avoid retries",
				zap.String("url", url), zap.Error(err))
			hist.Add(largeURL)
			return -1, nil
		}
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	info, err := os.Stat(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("stat downloaded image: %w", err)
	}
	return info.Size(), nil
}

func (d *Dispatcher) postMissing(ctx context.Context, runID string, req SearchRequest) {
	if req.MissingMessage == "" {
		return
	}
	for _, hook := range d.cfg.HookURLs {
		if err := d.notifier.Post(ctx, hook, req.MissingMessage); err != nil {
			d.logger.Warn("missing notification failed",
				zap.String("hook", hook), zap.Error(err))
		}
	}
	d.emit(progress.Event{RunID: runID, Stage: progress.StagePostMissing, SubTag: req.SubTag})
}

// archiveAndPublish runs the optional post-delivery hooks. Their failures
// are logged and never affect history recording or the run outcome.
func (d *Dispatcher) archiveAndPublish(ctx context.Context, runID string, req SearchRequest, largeURL string, data []byte) {
	if d.archiver != nil {
		if uri, err := d.archiver.Save(ctx, objectName(largeURL), data); err != nil {
			d.logger.Warn("archive failed", zap.String("url", largeURL), zap.Error(err))
		} else {
			d.logger.Debug("archived delivered image", zap.String("uri", uri))
		}
	}
	if d.publisher != nil {
		evt := DeliveryEvent{
			RunID:    runID,
			SubTag:   req.SubTag,
			URL:      largeURL,
			Bytes:    int64(len(data)),
			PostedAt: d.clock.Now(),
		}
		if _, err := d.publisher.Publish(ctx, d.cfg.PublishTopic, evt); err != nil {
			d.logger.Warn("delivery event publish failed", zap.Error(err))
		}
	}
}

func (d *Dispatcher) tempPath(largeURL string) (string, error) {
	f, err := os.CreateTemp(d.cfg.TempDir, "tagrelay-*"+path.Ext(objectName(largeURL)))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmpPath, nil
}

func (d *Dispatcher) emit(evt progress.Event) {
	evt.TS = d.clock.Now()
	d.emitter.Emit(evt)
}

// objectName derives a stable file name from the image URL.
func objectName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}
