package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pageharvest/harvestd/internal/archive"
	"github.com/pageharvest/harvestd/internal/extract"
	"github.com/pageharvest/harvestd/internal/harvest"
	"github.com/pageharvest/harvestd/internal/logging"
	"github.com/pageharvest/harvestd/internal/orchestrator"
	"github.com/pageharvest/harvestd/internal/queue"
	"github.com/pageharvest/harvestd/internal/store"
)

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, url string) (harvest.Page, error) {
	body := fmt.Sprintf("<html><head><title>Fetched</title></head><body><p>text from %s</p></body></html>", url)
	return harvest.Page{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

type fakeDiscoverer struct {
	urls []string
}

func (d *fakeDiscoverer) Discover(_ context.Context, _ string, desired int) ([]string, error) {
	if desired > len(d.urls) {
		desired = len(d.urls)
	}
	return d.urls[:desired], nil
}

type fakeIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *fakeIDGen) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("job-%d", g.n), nil
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Unix(1_700_000_000, 0) }

type testServer struct {
	srv  *httptest.Server
	root string
	logs *logging.LogFile
}

func newTestServer(t *testing.T, disc harvest.Discoverer) *testServer {
	t.Helper()

	root := t.TempDir()
	clock := fixedClock{}
	janitor := store.NewJanitor(10*time.Minute, time.Second, clock, zap.NewNop())
	artifacts, err := store.New(root, nil, janitor, zap.NewNop())
	require.NoError(t, err)

	orch := orchestrator.New(
		fakeFetcher{},
		extract.NewExtractor(),
		artifacts,
		disc,
		orchestrator.NewJobStore(),
		&fakeIDGen{},
		clock,
		queue.New(64),
		orchestrator.Config{},
		zap.NewNop(),
	)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go orch.Run(ctx)

	logPath := filepath.Join(t.TempDir(), "harvestd.log")
	require.NoError(t, os.WriteFile(logPath, []byte("line one\nline two\n"), 0o640))
	logs := logging.NewLogFile(logPath)

	server := NewServer(orch, archive.New(root, zap.NewNop()), logs, 30*time.Second, zap.NewNop())
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, root: root, logs: logs}
}

func uploadRequest(t *testing.T, url, filename, content, format string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	if format != "" {
		require.NoError(t, mw.WriteField("output_format", format))
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHarvestListEndToEnd(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeDiscoverer{})
	req := uploadRequest(t, ts.srv.URL+"/v1/harvest/list", "urls.txt",
		"http://a.example/x\nhttp://b.example/y\n", "")

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body harvestResponse
	decodeBody(t, resp, &body)
	require.Equal(t, "scheduled", body.Status)
	require.Equal(t, 2, body.ScheduledCount)
	require.Equal(t, "/v1/download/"+body.JobID, body.DownloadURL)

	// No require calls in the polling closure: it runs off the test
	// goroutine, where FailNow is not allowed.
	require.Eventually(t, func() bool {
		resp, err := ts.srv.Client().Get(ts.srv.URL + "/v1/jobs/" + body.JobID)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var job harvest.Job
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return false
		}
		return job.Status == harvest.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	dl, err := ts.srv.Client().Get(ts.srv.URL + body.DownloadURL)
	require.NoError(t, err)
	defer dl.Body.Close()
	require.Equal(t, http.StatusOK, dl.StatusCode)
	require.Equal(t, "application/zip", dl.Header.Get("Content-Type"))
	require.Contains(t, dl.Header.Get("Content-Disposition"), body.JobID+".zip")

	// One-shot: the session and archive are consumed by the download.
	again, err := ts.srv.Client().Get(ts.srv.URL + body.DownloadURL)
	require.NoError(t, err)
	again.Body.Close()
	require.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestHarvestListRejectsBadUploads(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeDiscoverer{})
	endpoint := ts.srv.URL + "/v1/harvest/list"

	cases := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{"missing file part", func(t *testing.T) *http.Request {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			require.NoError(t, mw.WriteField("output_format", "text"))
			require.NoError(t, mw.Close())
			req, err := http.NewRequest(http.MethodPost, endpoint, &buf)
			require.NoError(t, err)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			return req
		}},
		{"wrong extension", func(t *testing.T) *http.Request {
			return uploadRequest(t, endpoint, "urls.csv", "http://a.example\n", "")
		}},
		{"empty file", func(t *testing.T) *http.Request {
			return uploadRequest(t, endpoint, "urls.txt", "\n   \n", "")
		}},
		{"unknown format", func(t *testing.T) *http.Request {
			return uploadRequest(t, endpoint, "urls.txt", "http://a.example\n", "yaml")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := ts.srv.Client().Do(tc.req(t))
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestHarvestTopicCompletes(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeDiscoverer{urls: []string{
		"https://one.example/a",
		"https://two.example/b",
		"https://three.example/c",
	}})

	payload := `{"topic": "rust ownership", "count": 3, "output_format": "structured"}`
	resp, err := ts.srv.Client().Post(ts.srv.URL+"/v1/harvest/topic", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body harvestResponse
	decodeBody(t, resp, &body)
	require.Equal(t, "completed", body.Status)
	require.Equal(t, 3, body.ScheduledCount)
	require.FileExists(t, filepath.Join(ts.root, body.JobID+"_rust-ownership", "one.example.json"))
}

func TestHarvestTopicRejectsEmptyTopic(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeDiscoverer{})
	resp, err := ts.srv.Client().Post(ts.srv.URL+"/v1/harvest/topic", "application/json",
		strings.NewReader(`{"topic": "   "}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDownloadUnknownJobCreatesNothing(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeDiscoverer{})
	resp, err := ts.srv.Client().Get(ts.srv.URL + "/v1/download/no-such-job")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	entries, err := os.ReadDir(ts.root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// abortWriter rejects every body write, standing in for a client that
// disconnected mid-transfer.
type abortWriter struct {
	header http.Header
	status int
}

func (w *abortWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}
	return w.header
}

func (w *abortWriter) WriteHeader(code int) { w.status = code }

func (w *abortWriter) Write([]byte) (int, error) {
	return 0, errors.New("client went away")
}

func archiveDownloadCount(t *testing.T, status string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "harvestd_archive_downloads_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestDownloadInterruptedTransferCleansUpAndCounts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "job-9")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.example.txt"), []byte("alpha"), 0o640))

	clock := fixedClock{}
	janitor := store.NewJanitor(10*time.Minute, time.Second, clock, zap.NewNop())
	artifacts, err := store.New(root, nil, janitor, zap.NewNop())
	require.NoError(t, err)
	orch := orchestrator.New(
		fakeFetcher{},
		extract.NewExtractor(),
		artifacts,
		&fakeDiscoverer{},
		orchestrator.NewJobStore(),
		&fakeIDGen{},
		clock,
		queue.New(1),
		orchestrator.Config{},
		zap.NewNop(),
	)
	// Timeout 0 skips http.TimeoutHandler, whose buffering would hide
	// the write failure from the handler.
	server := NewServer(orch, archive.New(root, zap.NewNop()), nil, 0, zap.NewNop())

	before := archiveDownloadCount(t, "interrupted")
	req := httptest.NewRequest(http.MethodGet, "/v1/download/job-9", nil)
	server.Handler().ServeHTTP(&abortWriter{}, req)

	require.Equal(t, before+1, archiveDownloadCount(t, "interrupted"))
	require.NoDirExists(t, dir)
	require.NoFileExists(t, filepath.Join(root, "job-9.zip"))
}

func TestJobStatusUnknownJob(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeDiscoverer{})
	resp, err := ts.srv.Client().Get(ts.srv.URL + "/v1/jobs/nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeDiscoverer{})

	resp, err := ts.srv.Client().Get(ts.srv.URL + "/logs")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sb strings.Builder
	_, err = io.Copy(&sb, resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, sb.String(), "line one")

	clearResp, err := ts.srv.Client().Post(ts.srv.URL+"/logs/clear", "application/json", nil)
	require.NoError(t, err)
	clearResp.Body.Close()
	require.Equal(t, http.StatusOK, clearResp.StatusCode)

	content, err := ts.logs.Read()
	require.NoError(t, err)
	require.Empty(t, content)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakeDiscoverer{})
	resp, err := ts.srv.Client().Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
