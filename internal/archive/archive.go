// Package archive registers ingested frames with the science archive.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/laav10/astro-ingester/internal/constants"
	"github.com/laav10/astro-ingester/internal/metadata"
	"github.com/ubuntu/decorate"
)

// ErrRegistrationFailed is returned when the archive does not accept a frame,
// either due to a network error or a status code other than 201.
var ErrRegistrationFailed = errors.New("frame registration failed")

// maxErrorBody is the number of bytes of a rejected response kept in the error.
const maxErrorBody = 1024

// frameNamespace scopes the idempotency keys of registered frames.
var frameNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/laav10/astro-ingester/frames"))

// Config is the archive endpoint configuration.
type Config struct {
	URL     string        `mapstructure:"archive-url"`
	Token   string        `mapstructure:"archive-token"`
	Timeout time.Duration `mapstructure:"archive-timeout"`
}

// Registrar posts frame payloads to the archive.
type Registrar struct {
	url    string
	token  string
	client *http.Client
	log    *slog.Logger
}

type options struct {
	client *http.Client
	log    *slog.Logger
}

// Option configures a Registrar.
type Option func(*options)

// WithHTTPClient sets the HTTP client used to reach the archive. It takes precedence over the configured timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithLogger sets the logger of the Registrar.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New returns a Registrar posting to the configured archive.
func New(cfg Config, args ...Option) Registrar {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultArchiveTimeout
	}

	opts := options{
		client: &http.Client{Timeout: timeout},
		log:    slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}

	return Registrar{
		url:    cfg.URL,
		token:  cfg.Token,
		client: opts.client,
		log:    opts.log,
	}
}

// IdempotencyKey identifies the registration of a given content under a given object key.
// Registering the same bytes under the same key always yields the same value.
func IdempotencyKey(p metadata.Payload) string {
	var name strings.Builder
	for _, v := range p.VersionSet {
		fmt.Fprintf(&name, "%s/%s;", v.MD5, v.Key)
	}
	return uuid.NewSHA1(frameNamespace, []byte(name.String())).String()
}

// Register posts the payload to the archive once.
// Only a 201 Created answer is a success.
func (r Registrar) Register(ctx context.Context, p metadata.Payload) (err error) {
	defer decorate.OnError(&err, "could not register %q", p.Basename)

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+r.token)
	req.Header.Set("Idempotency-Key", IdempotencyKey(p))

	r.log.Debug("Sending payload to archive", "url", r.url, "basename", p.Basename)
	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Join(ErrRegistrationFailed, fmt.Errorf("failed to send HTTP request: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Join(ErrRegistrationFailed,
			fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	r.log.Debug("Frame registered", "basename", p.Basename)
	return nil
}
