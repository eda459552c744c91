package pixiv

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/relay"
)

// defaultReferer satisfies the image CDN, which refuses requests that do not
// originate from a pixiv page.
const defaultReferer = "https://app-api.pixiv.net/"

// FetcherConfig controls the binary download collector.
type FetcherConfig struct {
	UserAgent string
	Referer   string
	Timeout   time.Duration
}

// Fetcher implements relay.Downloader using a Colly collector.
type Fetcher struct {
	cfg           FetcherConfig
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewFetcher builds a Fetcher.
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if cfg.Referer == "" {
		cfg.Referer = defaultReferer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Download fetches url into the file at path. Client-error responses are
// wrapped in relay.ErrPermanentDownload: the host has refused this URL and
// will keep refusing it, so the caller should never retry.
func (f *Fetcher) Download(ctx context.Context, url string, path string) error {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		writeErr   error
		fetchErr   error
		statusCode int
	)
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Referer", f.cfg.Referer)
	})
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		writeErr = os.WriteFile(path, r.Body, 0o600)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	visitErr := f.runCollector(ctx, collector, url)
	// A refused URL surfaces both through OnError and Visit's return value;
	// classify by status before reporting the transport error.
	if statusCode >= 400 && statusCode < 500 {
		return fmt.Errorf("%w: %s (status %d)", relay.ErrPermanentDownload, url, statusCode)
	}
	if visitErr != nil {
		return visitErr
	}
	if fetchErr != nil {
		return fmt.Errorf("download response failed: %w", fetchErr)
	}
	if writeErr != nil {
		return fmt.Errorf("write downloaded image: %w", writeErr)
	}
	f.logger.Debug("downloaded image",
		zap.String("url", url), zap.Int("status", statusCode))
	return nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("download canceled: %w", ctx.Err())
	case err := <-done:
		// Visit reports transport-level failures; response-level errors
		// surface through the OnError hook instead.
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
