package testutils

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeS3 is an in memory S3 endpoint answering the path style bucket and object requests of the ingester.
type FakeS3 struct {
	*httptest.Server

	mu       sync.Mutex
	buckets  map[string]bool
	objects  map[string][]byte
	requests []string

	headStatus  int
	createError string
	putStatus   int
}

// FakeS3Option configures a FakeS3.
type FakeS3Option func(*FakeS3)

// WithBucket creates bucket before the server starts.
func WithBucket(bucket string) FakeS3Option {
	return func(s *FakeS3) {
		s.buckets[bucket] = true
	}
}

// WithHeadStatus makes every bucket lookup answer with status.
func WithHeadStatus(status int) FakeS3Option {
	return func(s *FakeS3) {
		s.headStatus = status
	}
}

// WithCreateError makes bucket creation fail with the given S3 error code.
func WithCreateError(code string) FakeS3Option {
	return func(s *FakeS3) {
		s.createError = code
	}
}

// WithPutStatus makes object uploads fail with status.
func WithPutStatus(status int) FakeS3Option {
	return func(s *FakeS3) {
		s.putStatus = status
	}
}

// NewFakeS3 starts a FakeS3, closed at the end of the test.
func NewFakeS3(t *testing.T, args ...FakeS3Option) *FakeS3 {
	t.Helper()

	s := &FakeS3{
		buckets: make(map[string]bool),
		objects: make(map[string][]byte),
	}
	for _, opt := range args {
		opt(s)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Object returns the content stored under bucket and key.
func (s *FakeS3) Object(bucket, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[bucket+"/"+key]
	return data, ok
}

// HasBucket reports whether bucket exists.
func (s *FakeS3) HasBucket(bucket string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buckets[bucket]
}

// Requests returns the received requests as "METHOD /path", in order.
func (s *FakeS3) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.requests...)
}

// CountRequests returns how many requests were received with method and path.
func (s *FakeS3) CountRequests(method, path string) int {
	var n int
	for _, r := range s.Requests() {
		if r == method+" "+path {
			n++
		}
	}
	return n
}

func (s *FakeS3) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := strings.Trim(r.URL.Path, "/")
	s.requests = append(s.requests, r.Method+" /"+path)
	bucket, key, _ := strings.Cut(path, "/")

	switch {
	case key == "" && r.Method == http.MethodHead:
		switch {
		case s.headStatus != 0:
			w.WriteHeader(s.headStatus)
		case s.buckets[bucket]:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}

	case key == "" && r.Method == http.MethodPut:
		if s.createError != "" {
			writeS3Error(w, http.StatusConflict, s.createError)
			return
		}
		s.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)

	case key != "" && r.Method == http.MethodPut:
		if s.putStatus != 0 {
			writeS3Error(w, s.putStatus, "InternalError")
			return
		}
		if !s.buckets[bucket] {
			writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
			return
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeS3Error(w, http.StatusBadRequest, "IncompleteBody")
			return
		}
		s.objects[bucket+"/"+key] = data
		w.Header().Set("ETag", fmt.Sprintf("%q", fmt.Sprintf("%x", len(data))))
		w.WriteHeader(http.StatusOK)

	default:
		writeS3Error(w, http.StatusNotImplemented, "NotImplemented")
	}
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><RequestId>fake</RequestId></Error>`, code, code)
}
