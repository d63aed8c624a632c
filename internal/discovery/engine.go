// Package discovery turns a topic into an ordered, deduplicated set of
// harvestable URLs by walking paginated search results.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pageharvest/harvestd/internal/harvest"
	"github.com/pageharvest/harvestd/internal/metrics"
)

// FilterPolicy selects how candidates are filtered beyond the domain
// exclusion list.
type FilterPolicy string

const (
	// PolicyDoctype drops only excluded document types (the default).
	PolicyDoctype FilterPolicy = "doctype"
	// PolicyKeyword additionally requires a topic keyword in the URL.
	PolicyKeyword FilterPolicy = "keyword"
)

// redirectMarker terminates the destination URL embedded in a search
// result's redirect wrapper.
const redirectMarker = "&sa="

// excludedExtensions lists non-HTML document types that are skipped, not
// treated as errors.
var excludedExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
	".ppt":  {},
	".pptx": {},
	".xls":  {},
	".xlsx": {},
}

// Config controls search pagination and filtering.
type Config struct {
	// SearchBaseURL is the search endpoint the topic query is appended to.
	SearchBaseURL  string
	PageCap        int
	ResultsPerPage int
	Policy         FilterPolicy
}

// Engine issues paginated topic searches through the shared Fetcher.
type Engine struct {
	fetcher   harvest.Fetcher
	blocklist *harvest.DomainBlocklist
	cfg       Config
	logger    *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(fetcher harvest.Fetcher, blocklist *harvest.DomainBlocklist, cfg Config, logger *zap.Logger) *Engine {
	if cfg.PageCap <= 0 {
		cfg.PageCap = 20
	}
	if cfg.ResultsPerPage <= 0 {
		cfg.ResultsPerPage = 10
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyDoctype
	}
	return &Engine{
		fetcher:   fetcher,
		blocklist: blocklist,
		cfg:       cfg,
		logger:    logger,
	}
}

// Discover walks result pages until desired candidates accumulate or the
// page cap is exhausted. A single failed result-page fetch is logged and
// skipped; duplicates never reach the caller.
func (e *Engine) Discover(ctx context.Context, topic string, desired int) ([]string, error) {
	if desired <= 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	candidates := make([]string, 0, desired)

	for page := 1; page <= e.cfg.PageCap && len(candidates) < desired; page++ {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}

		pageURL := e.searchURL(topic, page)
		res, err := e.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			e.logger.Warn("search results page fetch failed",
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}
		metrics.DiscoveryPage()

		for _, href := range parseLinks(res.Body) {
			target, ok := unwrapRedirect(href)
			if !ok {
				continue
			}
			if !e.accept(target, topic) {
				continue
			}
			if _, dup := seen[target]; dup {
				continue
			}
			seen[target] = struct{}{}
			candidates = append(candidates, target)
			metrics.DiscoveryCandidate()
			if len(candidates) >= desired {
				break
			}
		}
	}

	return candidates, nil
}

// searchURL embeds the topic and a page offset into the search endpoint.
func (e *Engine) searchURL(topic string, page int) string {
	offset := (page - 1) * e.cfg.ResultsPerPage
	return fmt.Sprintf("%s?q=%s&start=%d",
		e.cfg.SearchBaseURL,
		url.QueryEscape(topic),
		offset,
	)
}

// parseLinks collects every hyperlink target from a result document.
func parseLinks(html []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}

// unwrapRedirect extracts the destination URL embedded in a search
// engine's redirect wrapper: the substring starting at the first "http"
// and ending just before the tracking-parameter marker. Links with no
// embedded destination are discarded.
func unwrapRedirect(href string) (string, bool) {
	idx := strings.Index(href, "http")
	if idx < 0 {
		return "", false
	}
	target := href[idx:]
	if cut := strings.Index(target, redirectMarker); cut >= 0 {
		target = target[:cut]
	}
	return target, true
}

// accept applies the candidate filters: syntactic validity, the domain
// exclusion list, the document-type exclusion, and under the keyword
// policy a topic-term match on the URL itself.
func (e *Engine) accept(candidate, topic string) bool {
	u, err := url.Parse(candidate)
	if err != nil || !u.IsAbs() || u.Hostname() == "" {
		metrics.DiscoverySkipped("invalid")
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		metrics.DiscoverySkipped("invalid")
		return false
	}
	if e.blocklist.IsBlocked(u.Hostname()) {
		metrics.DiscoverySkipped("excluded_domain")
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if _, excluded := excludedExtensions[ext]; excluded {
		metrics.DiscoverySkipped("document_type")
		e.logger.Debug("skipping non-html document", zap.String("url", candidate))
		return false
	}
	if e.cfg.Policy == PolicyKeyword && !containsKeyword(candidate, topic) {
		metrics.DiscoverySkipped("keyword")
		return false
	}
	return true
}

// containsKeyword reports whether any topic term of three or more
// characters appears in the candidate URL.
func containsKeyword(candidate, topic string) bool {
	lower := strings.ToLower(candidate)
	for _, term := range strings.Fields(strings.ToLower(topic)) {
		if len(term) < 3 {
			continue
		}
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
