package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/pageharvest/harvestd/internal/harvest"
	"github.com/pageharvest/harvestd/internal/metrics"
)

// Config controls fetcher behavior.
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration
	// EdgeServers lists Server header values (substring, case-insensitive)
	// recognized as anti-bot edge proxies. A 403 carrying one of these is a
	// challenge, not an error.
	EdgeServers []string
}

// Fetcher implements harvest.Fetcher using a Colly collector.
type Fetcher struct {
	cache         *Cache
	baseCollector *colly.Collector
	edgeServers   []string
	logger        *zap.Logger
}

// New constructs a configured Fetcher sharing the given cache.
func New(cfg Config, cache *Cache, logger *zap.Logger) (*Fetcher, error) {
	if cache == nil {
		return nil, errors.New("fetcher requires a cache")
	}
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
	)
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	edges := make([]string, 0, len(cfg.EdgeServers))
	for _, s := range cfg.EdgeServers {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			edges = append(edges, s)
		}
	}

	return &Fetcher{
		cache:         cache,
		baseCollector: base,
		edgeServers:   edges,
		logger:        logger,
	}, nil
}

// Fetch returns the body for rawURL. The shared cache is consulted first
// with no freshness check. A URL with a secure scheme that fails at the
// connection level is retried once over plain http on the same host and
// path; an insecure URL gets no fallback. A 403 from a recognized edge
// proxy yields harvest.ErrChallenged.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (harvest.Page, error) {
	if body, ok := f.cache.Get(rawURL); ok {
		metrics.FetchResult("hit")
		return harvest.Page{
			URL:        rawURL,
			FinalURL:   rawURL,
			StatusCode: http.StatusOK,
			Body:       body,
		}, nil
	}

	page, err := f.attempt(ctx, rawURL)
	if err != nil {
		insecure, ok := insecureVariant(rawURL)
		if !ok {
			metrics.FetchResult("error")
			return harvest.Page{}, &harvest.FetchError{URL: rawURL, Err: err}
		}
		f.logger.Debug("secure transport failed, falling back",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		page, err = f.attempt(ctx, insecure)
		if err != nil {
			metrics.FetchResult("error")
			return harvest.Page{}, &harvest.FetchError{URL: rawURL, Err: err}
		}
	}

	return f.classify(rawURL, page)
}

// classify maps an HTTP result onto the fetch contract.
func (f *Fetcher) classify(rawURL string, page fetchedPage) (harvest.Page, error) {
	switch {
	case page.statusCode == http.StatusOK:
		f.cache.Put(rawURL, page.body)
		metrics.FetchResult("fetched")
		return harvest.Page{
			URL:        rawURL,
			FinalURL:   page.finalURL,
			StatusCode: page.statusCode,
			Body:       page.body,
		}, nil
	case page.statusCode == http.StatusForbidden && f.isEdgeServer(page.server):
		metrics.FetchResult("challenged")
		f.logger.Info("challenge page detected",
			zap.String("url", rawURL),
			zap.String("server", page.server),
		)
		return harvest.Page{}, harvest.ErrChallenged
	default:
		metrics.FetchResult("error")
		return harvest.Page{}, &harvest.FetchError{
			URL:        rawURL,
			StatusCode: page.statusCode,
			Status:     http.StatusText(page.statusCode),
		}
	}
}

func (f *Fetcher) isEdgeServer(server string) bool {
	server = strings.ToLower(server)
	for _, edge := range f.edgeServers {
		if strings.Contains(server, edge) {
			return true
		}
	}
	return false
}

type fetchedPage struct {
	finalURL   string
	statusCode int
	server     string
	body       []byte
}

// attempt performs one network fetch. A non-nil error means the transport
// failed before an HTTP status was obtained; HTTP error statuses come back
// as a fetchedPage with err nil.
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (fetchedPage, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan attemptResult, 1)
	var once sync.Once
	send := func(res attemptResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(attemptResult{page: pageFromResponse(r)})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			// The transport worked; the server answered with an error
			// status. Classification happens in the caller.
			send(attemptResult{page: pageFromResponse(r)})
			return
		}
		if err == nil {
			err = errors.New("unknown collector error")
		}
		send(attemptResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return fetchedPage{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return fetchedPage{}, err
		}
		return res.page, res.err
	default:
		return fetchedPage{}, errors.New("fetch produced no result")
	}
}

func pageFromResponse(r *colly.Response) fetchedPage {
	page := fetchedPage{
		statusCode: r.StatusCode,
		body:       append([]byte{}, r.Body...),
	}
	if r.Request != nil && r.Request.URL != nil {
		page.finalURL = r.Request.URL.String()
	}
	if r.Headers != nil {
		page.server = r.Headers.Get("Server")
	}
	return page
}

type attemptResult struct {
	page fetchedPage
	err  error
}

// insecureVariant rewrites an https URL to http on the same host and
// path. It reports false for URLs that already use an insecure scheme,
// which get no fallback.
func insecureVariant(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" {
		return "", false
	}
	u.Scheme = "http"
	return u.String(), true
}
