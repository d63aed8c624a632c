package harvest

import (
	"context"
	"time"
)

// Fetcher retrieves a page body for a URL. Implementations return
// ErrChallenged when the page is an anti-bot challenge rather than
// content, and *FetchError for HTTP or transport failures.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// ArtifactStore persists artifacts into job-scoped session directories.
type ArtifactStore interface {
	Save(ctx context.Context, artifact Artifact) error
	CreateSession(folder string) (string, error)
	FileCount(folder string) int
}

// Discoverer turns a topic into an ordered, deduplicated list of
// candidate URLs.
type Discoverer interface {
	Discover(ctx context.Context, topic string, desired int) ([]string, error)
}

// CacheInvalidator drops a single fetch-cache entry. The artifact store
// calls it after a successful persist; the raw page is no longer needed.
type CacheInvalidator interface {
	Invalidate(url string)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
