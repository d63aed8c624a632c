// Package archive bundles session directories into zip archives with
// one-shot download semantics: packaging consumes the directory, and the
// archive itself is deleted once its transfer finishes.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pageharvest/harvestd/internal/harvest"
)

// Packager creates and disposes of job archives under the work root.
type Packager struct {
	root   string
	logger *zap.Logger
}

// New creates a Packager over the work root.
func New(workRoot string, logger *zap.Logger) *Packager {
	return &Packager{
		root:   workRoot,
		logger: logger,
	}
}

// Package zips the session directory for jobID and deletes the directory.
// Returns harvest.ErrNotFound when no session directory exists; in that
// case no archive file is created.
func (p *Packager) Package(jobID string) (string, error) {
	dir, err := p.findSession(jobID)
	if err != nil {
		return "", err
	}

	zipPath := filepath.Join(p.root, jobID+".zip")
	if err := zipDirectory(dir, zipPath); err != nil {
		if rmErr := os.Remove(zipPath); rmErr != nil && !os.IsNotExist(rmErr) {
			p.logger.Warn("partial archive cleanup failed",
				zap.String("path", zipPath),
				zap.Error(rmErr),
			)
		}
		return "", fmt.Errorf("package session %s: %w", jobID, err)
	}

	// The directory is consumed by packaging; the janitor's later sweep
	// finds it already gone and moves on.
	if err := os.RemoveAll(dir); err != nil {
		p.logger.Error("session directory removal failed",
			zap.String("dir", dir),
			zap.Error(err),
		)
	}
	return zipPath, nil
}

// Remove deletes the archive after its transfer, successful or not.
// Best-effort: a failure here is logged, never surfaced to the caller.
func (p *Packager) Remove(zipPath string) {
	if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("archive removal failed",
			zap.String("path", zipPath),
			zap.Error(err),
		)
	}
}

// findSession locates the session directory for a job id: either the id
// itself or, for topic jobs, the id plus a sanitized-topic suffix.
func (p *Packager) findSession(jobID string) (string, error) {
	if jobID == "" || jobID != filepath.Base(jobID) || strings.HasPrefix(jobID, ".") {
		return "", harvest.ErrNotFound
	}

	exact := filepath.Join(p.root, jobID)
	if info, err := os.Stat(exact); err == nil && info.IsDir() {
		return exact, nil
	}

	// Literal prefix scan: the job id is caller-supplied, so it must
	// never reach a pattern-matching API.
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return "", harvest.ErrNotFound
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), jobID+"_") {
			return filepath.Join(p.root, e.Name()), nil
		}
	}
	return "", harvest.ErrNotFound
}

// zipDirectory streams every regular file in dir into a new zip archive.
func zipDirectory(dir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read session dir: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := addFile(zw, filepath.Join(dir, e.Name()), e.Name()); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	return nil
}
