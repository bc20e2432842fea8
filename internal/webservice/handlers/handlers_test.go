package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/laav10/astro-ingester/internal/pipeline"
	"github.com/laav10/astro-ingester/internal/webservice/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngest(t *testing.T) {
	t.Parallel()

	failed := pipeline.Outcome{
		State: pipeline.Failed,
		Steps: []pipeline.StepResult{
			{Step: pipeline.StepPrepare, Duration: time.Millisecond},
			{Step: pipeline.StepRewriteHeader, Duration: 2 * time.Millisecond},
			{Step: pipeline.StepUpload, Err: errors.Join(pipeline.ErrObjectStore, errors.New("connection refused"))},
		},
		Err: errors.Join(pipeline.ErrObjectStore, errors.New("connection refused")),
	}

	tests := map[string]struct {
		files         map[string]string
		notMultipart  bool
		maxUploadSize int64
		outcome       pipeline.Outcome

		wantStatus   int
		wantRun      bool
		wantMetaExt  string
		wantFITSName string
		wantError    string
	}{
		"Both files are ingested": {
			files: map[string]string{
				"fits_file":     "frame.fits",
				"metadata_file": "meta.json",
			},
			wantStatus:   http.StatusOK,
			wantRun:      true,
			wantMetaExt:  ".json",
			wantFITSName: "frame.fits",
		},
		"YAML metadata keeps its extension": {
			files: map[string]string{
				"fits_file":     "frame.fits",
				"metadata_file": "meta.YML",
			},
			wantStatus:   http.StatusOK,
			wantRun:      true,
			wantMetaExt:  ".yml",
			wantFITSName: "frame.fits",
		},
		"Unknown metadata extension is read as JSON": {
			files: map[string]string{
				"fits_file":     "frame.fits",
				"metadata_file": "meta.txt",
			},
			wantStatus:   http.StatusOK,
			wantRun:      true,
			wantMetaExt:  ".json",
			wantFITSName: "frame.fits",
		},
		"Client paths are stripped from file names": {
			files: map[string]string{
				"fits_file":     "../../etc/frame.fits",
				"metadata_file": "meta.json",
			},
			wantStatus:   http.StatusOK,
			wantRun:      true,
			wantMetaExt:  ".json",
			wantFITSName: "frame.fits",
		},

		"Pipeline failure is reported with 500": {
			files: map[string]string{
				"fits_file":     "frame.fits",
				"metadata_file": "meta.json",
			},
			outcome:      failed,
			wantStatus:   http.StatusInternalServerError,
			wantRun:      true,
			wantMetaExt:  ".json",
			wantFITSName: "frame.fits",
			wantError:    "object store upload failed",
		},

		"Error when metadata file is missing": {
			files:      map[string]string{"fits_file": "frame.fits"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Both FITS file and metadata file are required",
		},
		"Error when FITS file is missing": {
			files:      map[string]string{"metadata_file": "meta.json"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Both FITS file and metadata file are required",
		},
		"Error when request is not multipart": {
			notMultipart: true,
			wantStatus:   http.StatusBadRequest,
			wantError:    "Invalid multipart request",
		},
		"Error when request is too large": {
			files: map[string]string{
				"fits_file":     "frame.fits",
				"metadata_file": "meta.json",
			},
			maxUploadSize: 16,
			wantStatus:    http.StatusRequestEntityTooLarge,
			wantError:     "Request too large",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if tc.maxUploadSize == 0 {
				tc.maxUploadSize = 1 << 20
			}
			if tc.outcome.Steps == nil {
				tc.outcome = pipeline.Outcome{
					State: pipeline.Registered,
					Steps: []pipeline.StepResult{
						{Step: pipeline.StepPrepare},
						{Step: pipeline.StepRewriteHeader},
						{Step: pipeline.StepUpload},
						{Step: pipeline.StepRegister},
					},
				}
			}

			uploadDir := filepath.Join(t.TempDir(), "uploads")
			runner := &fakeRunner{outcome: tc.outcome}
			rec := &fakeRecorder{}
			h := handlers.NewIngest(runner, uploadDir, tc.maxUploadSize, rec)

			var req *http.Request
			if tc.notMultipart {
				req = httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{"fits":"frame"}`))
				req.Header.Set("Content-Type", "application/json")
			} else {
				req = multipartRequest(t, tc.files)
			}

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			require.Equal(t, tc.wantStatus, rr.Code, "Unexpected status code: %s", rr.Body.String())
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"), "Response should be JSON")

			var got map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got), "Response should be valid JSON")

			if !tc.wantRun {
				assert.Empty(t, runner.jobs, "Pipeline should not run")
				assert.Empty(t, rec.outcomes, "No outcome should be recorded")
				assert.Equal(t, false, got["success"], "Request should not succeed")
				assert.Equal(t, tc.wantError, got["error"], "Unexpected error message")
				return
			}

			require.Len(t, runner.jobs, 1, "Pipeline should run once")
			job := runner.jobs[0]
			assert.Equal(t, tc.wantFITSName, filepath.Base(job.Path), "FITS file name should be kept")
			assert.Equal(t, tc.wantMetaExt, filepath.Ext(job.MetadataPath), "Unexpected metadata extension")
			assert.Equal(t, "content of "+tc.files["fits_file"], runner.contents[job.Path], "FITS file should be saved")
			assert.Equal(t, "content of "+tc.files["metadata_file"], runner.contents[job.MetadataPath], "Metadata file should be saved")
			assert.Len(t, rec.outcomes, 1, "Outcome should be recorded")

			entries, err := os.ReadDir(uploadDir)
			require.NoError(t, err, "Upload directory should exist")
			assert.Empty(t, entries, "Uploaded files should be removed")

			assert.Equal(t, tc.outcome.State.String(), got["state"], "Unexpected state")
			steps, ok := got["steps"].([]any)
			require.True(t, ok, "Steps should be a list")
			assert.Len(t, steps, len(tc.outcome.Steps), "Every step should be reported")

			if tc.wantError != "" {
				assert.Equal(t, false, got["success"], "Request should not succeed")
				assert.Equal(t, tc.wantError, got["error"], "Unexpected error message")
				last, ok := steps[len(steps)-1].(map[string]any)
				require.True(t, ok, "Step should be an object")
				assert.Equal(t, false, last["success"], "Failing step should be reported")
				assert.Contains(t, last["error"], "connection refused", "Step error should be reported")
				return
			}
			assert.Equal(t, true, got["success"], "Request should succeed")
			assert.Equal(t, "File processed successfully", got["message"], "Unexpected message")
		})
	}
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	handlers.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "OK", got["status"], "Unexpected status")
	_, err := time.Parse(time.RFC3339, got["timestamp"])
	assert.NoError(t, err, "Timestamp should be RFC 3339")
}

func TestVersionHandler(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	handlers.VersionHandler(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.NotEmpty(t, got["version"], "Version should be set")
}

func multipartRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for field, name := range files {
		fw, err := w.CreateFormFile(field, name)
		require.NoError(t, err, "Setup: failed to create form file")
		_, err = fw.Write([]byte("content of " + name))
		require.NoError(t, err, "Setup: failed to write form file")
	}
	require.NoError(t, w.Close(), "Setup: failed to close multipart writer")

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &b)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

type fakeRunner struct {
	outcome pipeline.Outcome

	mu       sync.Mutex
	jobs     []pipeline.Job
	contents map[string]string
}

func (f *fakeRunner) Run(_ context.Context, job pipeline.Job) pipeline.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.jobs = append(f.jobs, job)
	if f.contents == nil {
		f.contents = make(map[string]string)
	}
	for _, p := range []string{job.Path, job.MetadataPath} {
		if d, err := os.ReadFile(p); err == nil {
			f.contents[p] = string(d)
		}
	}
	return f.outcome
}

type fakeRecorder struct {
	outcomes []pipeline.Outcome
}

func (f *fakeRecorder) Outcome(out pipeline.Outcome) {
	f.outcomes = append(f.outcomes, out)
}
