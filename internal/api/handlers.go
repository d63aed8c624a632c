package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pageharvest/harvestd/internal/harvest"
	"github.com/pageharvest/harvestd/internal/metrics"
	"github.com/pageharvest/harvestd/internal/orchestrator"
)

const maxUploadBytes = 10 << 20

type harvestResponse struct {
	Status         string `json:"status"`
	JobID          string `json:"job_id"`
	DownloadURL    string `json:"download_url"`
	ScheduledCount int    `json:"scheduled_count,omitempty"`
	Message        string `json:"message,omitempty"`
}

type topicRequest struct {
	Topic        string `json:"topic"`
	OutputFormat string `json:"output_format"`
	Count        int    `json:"count"`
}

// harvestList accepts a multipart upload of newline-delimited URLs and
// schedules a list-mode job. The response answers before the job runs.
func (s *Server) harvestList(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "a .txt file upload is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".txt") {
		writeError(w, http.StatusBadRequest, "only .txt uploads are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	urls := orchestrator.SplitURLList(string(data))
	if len(urls) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded file contains no URLs")
		return
	}

	format, err := harvest.ParseFormat(r.FormValue("output_format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, truncated, err := s.orch.HarvestList(r.Context(), urls, format)
	if err != nil {
		s.respondHarvestError(w, err)
		return
	}

	resp := harvestResponse{
		Status:         "scheduled",
		JobID:          job.ID,
		DownloadURL:    "/v1/download/" + job.ID,
		ScheduledCount: job.Counters.Scheduled,
	}
	if truncated {
		resp.Message = "url list exceeded the limit; extra lines were dropped"
	}
	writeJSON(w, http.StatusOK, resp)
}

// harvestTopic runs a topic-discovery job to completion and reports the
// final counters. Per-URL failures do not fail the request.
func (s *Server) harvestTopic(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	format, err := harvest.ParseFormat(req.OutputFormat)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.orch.HarvestTopic(r.Context(), req.Topic, req.Count, format)
	if err != nil {
		s.respondHarvestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, harvestResponse{
		Status:         "completed",
		JobID:          job.ID,
		DownloadURL:    "/v1/download/" + job.ID,
		ScheduledCount: job.Counters.Scheduled,
	})
}

// download streams the zipped session as a one-shot transfer: packaging
// consumes the directory and the archive is removed when the copy ends.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	zipPath, err := s.packager.Package(jobID)
	if errors.Is(err, harvest.ErrNotFound) {
		metrics.ArchiveDownload("not_found")
		writeError(w, http.StatusNotFound, "no harvested files for this job")
		return
	}
	if err != nil {
		metrics.ArchiveDownload("error")
		s.logger.Error("packaging failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not package job files")
		return
	}
	defer s.packager.Remove(zipPath)

	f, err := os.Open(zipPath)
	if err != nil {
		metrics.ArchiveDownload("error")
		s.logger.Error("archive open failed", zap.String("path", zipPath), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read job archive")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+jobID+`.zip"`)
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("archive transfer interrupted",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		metrics.ArchiveDownload("interrupted")
		return
	}
	metrics.ArchiveDownload("ok")
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, ok := s.orch.Jobs().Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) readLogs(w http.ResponseWriter, _ *http.Request) {
	if s.logs == nil {
		writeError(w, http.StatusNotFound, "log file is not configured")
		return
	}
	content, err := s.logs.Read()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read log file")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, content); err != nil {
		s.logger.Warn("log transfer interrupted", zap.Error(err))
	}
}

func (s *Server) clearLogs(w http.ResponseWriter, _ *http.Request) {
	if s.logs == nil {
		writeError(w, http.StatusNotFound, "log file is not configured")
		return
	}
	if err := s.logs.Clear(); err != nil {
		s.logger.Error("log clear failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not clear log file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) respondHarvestError(w http.ResponseWriter, err error) {
	var vErr *harvest.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, vErr.Msg)
		return
	}
	s.logger.Error("harvest request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "harvest failed")
}
