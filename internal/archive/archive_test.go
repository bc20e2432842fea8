package archive_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/laav10/astro-ingester/internal/archive"
	"github.com/laav10/astro-ingester/internal/metadata"
	"github.com/laav10/astro-ingester/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		status int
		body   string

		wantErr     bool
		wantErrText string
	}{
		"Created is a success": {status: http.StatusCreated, body: `{"id": 1}`},

		"Error on OK":           {status: http.StatusOK, wantErr: true, wantErrText: "200"},
		"Error on bad request":  {status: http.StatusBadRequest, body: `{"basename": ["required"]}`, wantErr: true, wantErrText: "required"},
		"Error on unauthorized": {status: http.StatusUnauthorized, body: "Invalid token.", wantErr: true, wantErrText: "Invalid token."},
		"Error on server error": {status: http.StatusInternalServerError, body: "boom", wantErr: true, wantErrText: "500: boom"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := testutils.NewFakeArchive(t, tc.status, tc.body)
			r := archive.New(archive.Config{URL: srv.URL + "/frames/", Token: "secret"})

			err := r.Register(t.Context(), samplePayload(t))

			reqs := srv.Requests()
			require.Len(t, reqs, 1, "Registration should be attempted exactly once")
			assert.Equal(t, "Token secret", reqs[0].Header.Get("Authorization"))
			assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
			assert.NotEmpty(t, reqs[0].Header.Get("Idempotency-Key"))
			assert.Equal(t, "sample_image_20250616_145810", reqs[0].Payload["basename"])

			if tc.wantErr {
				require.ErrorIs(t, err, archive.ErrRegistrationFailed)
				require.ErrorContains(t, err, tc.wantErrText)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRegisterTransportFailure(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		url    func(t *testing.T) string
		client *http.Client
	}{
		"Unreachable archive": {
			url: func(t *testing.T) string {
				t.Helper()
				srv := httptest.NewServer(http.NotFoundHandler())
				srv.Close()
				return srv.URL
			},
		},
		"Archive too slow": {
			url: func(t *testing.T) string {
				t.Helper()
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					select {
					case <-r.Context().Done():
					case <-time.After(5 * time.Second):
					}
					w.WriteHeader(http.StatusCreated)
				}))
				t.Cleanup(srv.Close)
				return srv.URL
			},
			client: &http.Client{Timeout: 50 * time.Millisecond},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var opts []archive.Option
			if tc.client != nil {
				opts = append(opts, archive.WithHTTPClient(tc.client))
			}
			r := archive.New(archive.Config{URL: tc.url(t), Token: "secret"}, opts...)

			err := r.Register(t.Context(), samplePayload(t))
			require.ErrorIs(t, err, archive.ErrRegistrationFailed)
		})
	}
}

func TestIdempotencyKey(t *testing.T) {
	t.Parallel()

	fs := metadata.Defaults()
	a := metadata.NewPayload("/tmp/frame.fits", nil, fs, "abc", metadata.DefaultFootprint())
	b := metadata.NewPayload("/other/dir/frame.fits", metadata.Observation{"OBJECT": "M31"}, fs, "abc", metadata.DefaultFootprint())
	otherSum := metadata.NewPayload("/tmp/frame.fits", nil, fs, "def", metadata.DefaultFootprint())
	otherKey := metadata.NewPayload("/tmp/renamed.fits", nil, fs, "abc", metadata.DefaultFootprint())

	require.Equal(t, archive.IdempotencyKey(a), archive.IdempotencyKey(b), "Same content under the same key should share a key")
	require.NotEqual(t, archive.IdempotencyKey(a), archive.IdempotencyKey(otherSum), "Different content should change the key")
	require.NotEqual(t, archive.IdempotencyKey(a), archive.IdempotencyKey(otherKey), "Different object key should change the key")
}

func samplePayload(t *testing.T) metadata.Payload {
	t.Helper()

	obs, hdr := metadata.Sample()
	fs, err := metadata.Merge(obs, hdr)
	require.NoError(t, err, "Setup: could not merge sample metadata")
	return metadata.NewPayload("/data/frame.fits", obs, fs, "d41d8cd98f00b204e9800998ecf8427e", metadata.DefaultFootprint())
}
