package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/laav10/astro-ingester/internal/metrics"
	"github.com/laav10/astro-ingester/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		results []pipeline.StepResult
		outcome pipeline.State

		want string
	}{
		"Successful run": {
			results: []pipeline.StepResult{
				{Step: pipeline.StepPrepare},
				{Step: pipeline.StepRewriteHeader},
				{Step: pipeline.StepUpload, Duration: time.Second},
				{Step: pipeline.StepRegister},
			},
			outcome: pipeline.Registered,
			want: `
# HELP astro_ingester_runs_total Number of ingestion runs, by final state.
# TYPE astro_ingester_runs_total counter
astro_ingester_runs_total{state="Registered"} 1
# HELP astro_ingester_steps_total Number of ingestion steps, by step and result.
# TYPE astro_ingester_steps_total counter
astro_ingester_steps_total{result="success",step="prepare"} 1
astro_ingester_steps_total{result="success",step="register"} 1
astro_ingester_steps_total{result="success",step="rewrite-header"} 1
astro_ingester_steps_total{result="success",step="upload"} 1
`,
		},
		"Failed upload": {
			results: []pipeline.StepResult{
				{Step: pipeline.StepPrepare},
				{Step: pipeline.StepRewriteHeader},
				{Step: pipeline.StepUpload, Err: errors.New("denied")},
			},
			outcome: pipeline.Failed,
			want: `
# HELP astro_ingester_runs_total Number of ingestion runs, by final state.
# TYPE astro_ingester_runs_total counter
astro_ingester_runs_total{state="Failed"} 1
# HELP astro_ingester_steps_total Number of ingestion steps, by step and result.
# TYPE astro_ingester_steps_total counter
astro_ingester_steps_total{result="failure",step="upload"} 1
astro_ingester_steps_total{result="success",step="prepare"} 1
astro_ingester_steps_total{result="success",step="rewrite-header"} 1
`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := metrics.New(prometheus.NewRegistry())
			for _, res := range tc.results {
				r.StepStarted(res.Step)
				r.StepFinished(res)
			}
			r.Outcome(pipeline.Outcome{State: tc.outcome})

			err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(tc.want),
				"astro_ingester_runs_total", "astro_ingester_steps_total")
			require.NoError(t, err)

			n, err := testutil.GatherAndCount(r.Registry(), "astro_ingester_step_duration_seconds")
			require.NoError(t, err)
			assert.Equal(t, len(tc.results), n, "Every step should have a duration series")

			n, err = testutil.GatherAndCount(r.Registry(), "astro_ingester_last_success_timestamp_seconds")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestPush(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		status int

		wantErr bool
	}{
		"Pushes to the job group": {status: http.StatusOK},

		"Error on gateway failure": {status: http.StatusInternalServerError, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var mu sync.Mutex
			var method, path, body string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				data, _ := io.ReadAll(r.Body)
				mu.Lock()
				method, path, body = r.Method, r.URL.Path, string(data)
				mu.Unlock()
				w.WriteHeader(tc.status)
			}))
			t.Cleanup(srv.Close)

			r := metrics.New(prometheus.NewRegistry())
			r.StepFinished(pipeline.StepResult{Step: pipeline.StepUpload})

			err := r.Push(t.Context(), srv.URL, "astro-ingester", srv.Client())

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, http.MethodPut, method, "Push should replace the job metrics")
			assert.Equal(t, "/metrics/job/astro-ingester", path)
			assert.NotEmpty(t, body)

			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMonitor(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	h := metrics.Monitor(reg, "health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for range 3 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	}

	want := `
# HELP http_requests_total Tracks the number of HTTP requests.
# TYPE http_requests_total counter
http_requests_total{code="418",handler="health",method="get"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "http_requests_total"))
}
