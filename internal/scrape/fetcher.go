package scrape

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"stockbot/internal/fault"
	logx "stockbot/pkg/logx"
)

// StatusUpstreamUnavailable is the edge-proxy "unknown error" status. It is
// reported apart from other HTTP errors because it means the origin is down
// behind the proxy, not that the request was wrong.
const StatusUpstreamUnavailable = 520

const (
	defaultFetchTimeout   = 15 * time.Second
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"
	defaultAccept         = "text/html,application/xhtml+xml,*/*"
	defaultAcceptLanguage = "en-US"
	maxBodyBytes          = 8 << 20
)

// Fetcher issues one request for the raw stock document.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type FetcherConfig struct {
	URL            string
	Timeout        time.Duration
	UserAgent      string
	Referer        string
	Accept         string
	AcceptLanguage string
}

// HTTPFetcher performs a single GET per call; retry policy lives in Retrier.
type HTTPFetcher struct {
	cfg    FetcherConfig
	client *http.Client
	log    logx.Logger
}

func NewHTTPFetcher(cfg FetcherConfig, log logx.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if strings.TrimSpace(cfg.Accept) == "" {
		cfg.Accept = defaultAccept
	}
	if strings.TrimSpace(cfg.AcceptLanguage) == "" {
		cfg.AcceptLanguage = defaultAcceptLanguage
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HTTPFetcher{
		cfg: cfg,
		// Per-request deadline comes from the context; the client timeout is a backstop.
		client: &http.Client{Timeout: cfg.Timeout + time.Second},
		log:    log,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, fault.Network(err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", f.cfg.Accept)
	req.Header.Set("Accept-Language", f.cfg.AcceptLanguage)
	if f.cfg.Referer != "" {
		req.Header.Set("Referer", f.cfg.Referer)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			f.log.Warn("fetch timed out", logx.String("url", f.cfg.URL), logx.Duration("took", time.Since(start)))
			return nil, fault.Timeout(err)
		}
		f.log.Error("fetch failed", logx.String("url", f.cfg.URL), logx.Err(err))
		return nil, fault.Network(err)
	}
	defer resp.Body.Close()

	f.log.Info("GET "+f.cfg.URL, logx.Int("status", resp.StatusCode), logx.Duration("took", time.Since(start)))

	switch {
	case resp.StatusCode == StatusUpstreamUnavailable:
		return nil, fault.UpstreamUnavailable(resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fault.HTTPStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fault.Timeout(err)
		}
		return nil, fault.Network(err)
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
