// Package store persists normalized artifacts into ephemeral, job-scoped
// session directories and sweeps them when their time-to-live elapses.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pageharvest/harvestd/internal/harvest"
)

// ArtifactStore writes one artifact per source hostname per job under a
// work root. Implements harvest.ArtifactStore.
type ArtifactStore struct {
	root    string
	cache   harvest.CacheInvalidator
	janitor *Janitor
	logger  *zap.Logger
}

// New creates the store, ensuring the work root exists.
func New(workRoot string, cache harvest.CacheInvalidator, janitor *Janitor, logger *zap.Logger) (*ArtifactStore, error) {
	if err := os.MkdirAll(workRoot, 0o750); err != nil {
		return nil, fmt.Errorf("create work root %s: %w", workRoot, err)
	}
	return &ArtifactStore{
		root:    workRoot,
		cache:   cache,
		janitor: janitor,
		logger:  logger,
	}, nil
}

// Root returns the work root path.
func (s *ArtifactStore) Root() string {
	return s.root
}

// CreateSession materializes a session directory up front and registers
// its deletion. Topic jobs call this before discovery starts.
func (s *ArtifactStore) CreateSession(folder string) (string, error) {
	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", &harvest.StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	s.janitor.Track(dir)
	return dir, nil
}

// Save serializes the artifact into its session directory. The filename
// derives from the source URL's hostname, so two URLs sharing a hostname
// within one job overwrite each other (last write wins). After a
// successful write the fetch-cache entry for the source URL is dropped
// and the directory's deletion is scheduled.
func (s *ArtifactStore) Save(ctx context.Context, a harvest.Artifact) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save canceled: %w", err)
	}

	name, err := artifactFileName(a.SourceURL, a.Format)
	if err != nil {
		return err
	}

	dir := filepath.Join(s.root, a.Folder)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &harvest.StorageError{Op: "mkdir", Path: dir, Err: err}
	}

	data, err := serialize(a)
	if err != nil {
		return err
	}

	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, data, 0o640); err != nil {
		return &harvest.StorageError{Op: "write", Path: target, Err: err}
	}

	if s.cache != nil {
		s.cache.Invalidate(a.SourceURL)
	}
	s.janitor.Track(dir)

	s.logger.Debug("artifact saved",
		zap.String("job_id", a.JobID),
		zap.String("source", a.SourceURL),
		zap.String("file", target),
	)
	return nil
}

// FileCount returns the number of regular files in a session directory.
// A missing directory counts as zero.
func (s *ArtifactStore) FileCount(folder string) int {
	entries, err := os.ReadDir(filepath.Join(s.root, folder))
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() {
			n++
		}
	}
	return n
}

// artifactFileName derives the on-disk name from the source hostname and
// the output format's extension.
func artifactFileName(sourceURL string, format harvest.OutputFormat) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Hostname() == "" {
		return "", &harvest.StorageError{
			Op:   "derive filename",
			Path: sourceURL,
			Err:  fmt.Errorf("no hostname in source url"),
		}
	}
	return u.Hostname() + format.Extension(), nil
}

type structuredArtifact struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func serialize(a harvest.Artifact) ([]byte, error) {
	if a.Format == harvest.FormatStructured {
		data, err := json.MarshalIndent(structuredArtifact{
			Title:   a.Title,
			Content: a.Text,
		}, "", "  ")
		if err != nil {
			return nil, &harvest.StorageError{Op: "marshal", Path: a.SourceURL, Err: err}
		}
		return data, nil
	}
	return []byte(a.Text), nil
}
