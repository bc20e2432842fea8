// Package handlers provides HTTP handlers for the web service.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/laav10/astro-ingester/internal/pipeline"
	"github.com/laav10/astro-ingester/internal/progress"
)

const (
	fitsField     = "fits_file"
	metadataField = "metadata_file"

	// maxMemory is the part of a multipart form kept in memory, the rest is spooled to disk.
	maxMemory = 32 << 20
)

// Ingest is a handler running the ingestion of an uploaded frame and its metadata.
// Ingestions are run one at a time.
type Ingest struct {
	runner        Runner
	recorders     []OutcomeRecorder
	uploadDir     string
	maxUploadSize int64

	mu sync.Mutex
}

// NewIngest creates a new Ingest handler storing uploads under uploadDir while they are ingested.
func NewIngest(runner Runner, uploadDir string, maxUploadSize int64, recorders ...OutcomeRecorder) *Ingest {
	return &Ingest{
		runner:        runner,
		recorders:     recorders,
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
	}
}

// ServeHTTP handles multipart ingestion requests.
func (h *Ingest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	log := slog.With("req_id", reqID)

	if r.ContentLength > h.maxUploadSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, ingestResponse{Error: "Request too large"})
		log.Error("Request too large", "size", r.ContentLength, "max", h.maxUploadSize)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		status, msg := http.StatusBadRequest, "Invalid multipart request"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status, msg = http.StatusRequestEntityTooLarge, "Request too large"
		}
		writeJSON(w, status, ingestResponse{Error: msg, Details: err.Error()})
		log.Error("Failed to parse multipart request", "err", err)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("Failed to remove multipart files", "err", err)
		}
	}()

	fits, fitsHeader, fitsErr := r.FormFile(fitsField)
	meta, metaHeader, metaErr := r.FormFile(metadataField)
	if fitsErr != nil || metaErr != nil {
		closeAll(fits, meta)
		writeJSON(w, http.StatusBadRequest, ingestResponse{Error: "Both FITS file and metadata file are required"})
		log.Error("Missing file in request", "fits_err", fitsErr, "metadata_err", metaErr)
		return
	}
	defer closeAll(fits, meta)

	log.Info("Request recv'd", "fits", fitsHeader.Filename, "metadata", metaHeader.Filename)

	dir, err := h.workDir()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ingestResponse{Error: "Internal server error", Details: err.Error()})
		log.Error("Failed to create work directory", "err", err)
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("Failed to clean up uploaded files", "dir", dir, "err", err)
		}
	}()

	job := pipeline.Job{
		Path:         filepath.Join(dir, safeName(fitsHeader.Filename, "frame.fits")),
		MetadataPath: filepath.Join(dir, "metadata"+metadataExt(metaHeader.Filename)),
	}
	if err := errors.Join(save(fits, job.Path), save(meta, job.MetadataPath)); err != nil {
		writeJSON(w, http.StatusInternalServerError, ingestResponse{Error: "Error saving files", Details: err.Error()})
		log.Error("Failed to save uploaded files", "err", err)
		return
	}

	out := h.run(r, job)

	resp := ingestResponse{
		Success: out.Succeeded(),
		State:   out.State.String(),
		Steps:   steps(out),
	}
	if !out.Succeeded() {
		resp.Error = progress.Cause(out.Err)
		resp.Details = out.Err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		log.Error("Ingestion failed", "state", out.State, "err", out.Err)
		return
	}

	resp.Message = "File processed successfully"
	writeJSON(w, http.StatusOK, resp)
	log.Info("Ingestion succeeded", "file", fitsHeader.Filename)
}

func (h *Ingest) run(r *http.Request, job pipeline.Job) pipeline.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := h.runner.Run(r.Context(), job)
	for _, rec := range h.recorders {
		rec.Outcome(out)
	}
	return out
}

// workDir creates a private directory for the files of one request.
func (h *Ingest) workDir() (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0750); err != nil {
		return "", err
	}
	return os.MkdirTemp(h.uploadDir, "ingest-*")
}

func steps(out pipeline.Outcome) []stepResponse {
	resp := make([]stepResponse, 0, len(out.Steps))
	for _, s := range out.Steps {
		sr := stepResponse{
			Step:        string(s.Step),
			Description: s.Step.Description(),
			Success:     s.Err == nil,
			DurationMS:  s.Duration.Milliseconds(),
		}
		if s.Err != nil {
			sr.Error = s.Err.Error()
		}
		resp = append(resp, sr)
	}
	return resp
}

// safeName returns the base name of an uploaded file, or fallback if it has none.
func safeName(name, fallback string) string {
	name = filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" || name == string(filepath.Separator) {
		return fallback
	}
	return name
}

// metadataExt keeps the extension of supported metadata formats so that they are decoded accordingly.
func metadataExt(name string) string {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".yaml", ".yml", ".toml":
		return ext
	default:
		return ".json"
	}
}

func save(src io.Reader, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return fmt.Errorf("could not write %s: %v", filepath.Base(path), err)
	}
	return f.Close()
}

func closeAll(files ...multipart.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
