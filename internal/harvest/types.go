// Package harvest defines the core types, interfaces and error taxonomy
// shared by the harvesting pipeline: fetching, extraction, storage,
// discovery and orchestration all speak in terms of this package.
package harvest

import (
	"fmt"
	"time"
)

// OutputFormat selects how an artifact is serialized on disk.
type OutputFormat string

const (
	// FormatText writes the normalized text verbatim.
	FormatText OutputFormat = "text"
	// FormatStructured wraps title and content in a JSON document.
	FormatStructured OutputFormat = "structured"
)

// ParseFormat validates a caller-supplied format string. An empty string
// selects FormatText.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "":
		return FormatText, nil
	case FormatText:
		return FormatText, nil
	case FormatStructured:
		return FormatStructured, nil
	default:
		return "", &ValidationError{Msg: fmt.Sprintf("unknown output format %q", s)}
	}
}

// Extension returns the artifact filename extension for the format.
func (f OutputFormat) Extension() string {
	if f == FormatStructured {
		return ".json"
	}
	return ".txt"
}

// Page is the raw result of fetching a URL.
type Page struct {
	// URL is the URL the caller asked for, before any transport fallback.
	URL string
	// FinalURL is the URL that actually produced the body.
	FinalURL   string
	StatusCode int
	Body       []byte
}

// Artifact is one normalized unit of harvested content for one source
// hostname within a job.
type Artifact struct {
	JobID     string
	SourceURL string
	Title     string
	Text      string
	// Folder is the session directory name, relative to the work root.
	Folder string
	Format OutputFormat
}

// JobMode distinguishes explicit-list jobs from topic-discovery jobs.
type JobMode string

const (
	ModeList  JobMode = "list"
	ModeTopic JobMode = "topic"
)

// JobStatus tracks job lifecycle for the status query.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
)

// JobCounters accumulate per-URL pipeline outcomes.
type JobCounters struct {
	Scheduled int `json:"scheduled"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Job is the in-memory record of one harvesting request. Jobs are
// ephemeral: they live for the duration of request handling plus the
// session directory's TTL.
type Job struct {
	ID        string       `json:"id"`
	Mode      JobMode      `json:"mode"`
	Format    OutputFormat `json:"format"`
	Folder    string       `json:"folder"`
	Status    JobStatus    `json:"status"`
	Counters  JobCounters  `json:"counters"`
	Submitted time.Time    `json:"submitted"`
}
