package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pageharvest/harvestd/internal/harvest"
)

// fakeFetcher serves canned search result pages keyed by the page offset.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[int]string
	failAt  map[int]bool
	fetches []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (harvest.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, rawURL)

	offset := 0
	if i := strings.Index(rawURL, "start="); i >= 0 {
		fmt.Sscanf(rawURL[i:], "start=%d", &offset)
	}
	if f.failAt[offset] {
		return harvest.Page{}, &harvest.FetchError{URL: rawURL, StatusCode: http.StatusBadGateway, Status: "Bad Gateway"}
	}
	body, ok := f.pages[offset]
	if !ok {
		body = "<html><body></body></html>"
	}
	return harvest.Page{URL: rawURL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (f *fakeFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

func resultsPage(links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="/url?q=%s&sa=U&ved=tracking">result</a>`, l)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestEngine(fetcher harvest.Fetcher, policy FilterPolicy) *Engine {
	bl := harvest.NewDomainBlocklist([]string{"google.com", "facebook.com"})
	return NewEngine(fetcher, bl, Config{
		SearchBaseURL:  "https://search.test/search",
		PageCap:        20,
		ResultsPerPage: 10,
		Policy:         policy,
	}, zap.NewNop())
}

func TestDiscoverCollectsAndDeduplicates(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[int]string{
		0: resultsPage(
			"https://site-one.example/page",
			"https://site-one.example/page", // duplicate on the same page
			"https://site-two.example/doc",
		),
		10: resultsPage(
			"https://site-two.example/doc", // duplicate across pages
			"https://site-three.example/a",
		),
	}}

	engine := newTestEngine(fetcher, PolicyDoctype)
	got, err := engine.Discover(context.Background(), "rust ownership", 5)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://site-one.example/page",
		"https://site-two.example/doc",
		"https://site-three.example/a",
	}, got)
}

func TestDiscoverStopsMidPageAtDesiredCount(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[int]string{
		0: resultsPage(
			"https://a.example/1",
			"https://b.example/2",
			"https://c.example/3",
			"https://d.example/4",
		),
	}}

	engine := newTestEngine(fetcher, PolicyDoctype)
	got, err := engine.Discover(context.Background(), "anything", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, fetcher.fetchCount(), "desired count reached on the first page")
}

func TestDiscoverRespectsPageCap(t *testing.T) {
	t.Parallel()

	// no page ever yields a candidate, so the loop must stop at the cap
	fetcher := &fakeFetcher{pages: map[int]string{}}
	engine := newTestEngine(fetcher, PolicyDoctype)

	got, err := engine.Discover(context.Background(), "empty", 5)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, 20, fetcher.fetchCount())
}

func TestDiscoverFiltersExcludedDomainsAndDoctypes(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[int]string{
		0: resultsPage(
			"https://maps.google.com/place",    // excluded domain
			"https://facebook.com/profile",     // excluded domain
			"https://papers.example/paper.pdf", // excluded document type
			"https://papers.example/deck.pptx", // excluded document type
			"https://kept.example/article",
		),
	}}

	engine := newTestEngine(fetcher, PolicyDoctype)
	got, err := engine.Discover(context.Background(), "topic", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"https://kept.example/article"}, got)
}

func TestDiscoverKeywordPolicy(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[int]string{
		0: resultsPage(
			"https://blog.example/rust-intro",
			"https://blog.example/unrelated-post",
		),
	}}

	engine := newTestEngine(fetcher, PolicyKeyword)
	got, err := engine.Discover(context.Background(), "rust ownership", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"https://blog.example/rust-intro"}, got)
}

func TestDiscoverContinuesPastFailedPage(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[int]string{
			10: resultsPage("https://after-failure.example/x"),
		},
		failAt: map[int]bool{0: true},
	}

	engine := newTestEngine(fetcher, PolicyDoctype)
	got, err := engine.Discover(context.Background(), "topic", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"https://after-failure.example/x"}, got)
}

func TestUnwrapRedirect(t *testing.T) {
	t.Parallel()

	cases := []struct {
		href string
		want string
		ok   bool
	}{
		{"/url?q=https://dest.example/a&sa=U&ved=xyz", "https://dest.example/a", true},
		{"https://plain.example/no-marker", "https://plain.example/no-marker", true},
		{"/relative/no-destination", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := unwrapRedirect(tc.href)
		require.Equal(t, tc.ok, ok, "href %q", tc.href)
		require.Equal(t, tc.want, got, "href %q", tc.href)
	}
}
