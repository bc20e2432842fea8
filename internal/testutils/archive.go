package testutils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ArchiveRequest is a registration received by a FakeArchive.
type ArchiveRequest struct {
	Header  http.Header
	Payload map[string]any
}

// FakeArchive is a science archive answering every registration with a fixed status.
type FakeArchive struct {
	*httptest.Server

	mu       sync.Mutex
	status   int
	body     string
	requests []ArchiveRequest
}

// NewFakeArchive starts a FakeArchive answering with status and body, closed at the end of the test.
func NewFakeArchive(t *testing.T, status int, body string) *FakeArchive {
	t.Helper()

	a := &FakeArchive{status: status, body: body}
	a.Server = httptest.NewServer(http.HandlerFunc(a.handle))
	t.Cleanup(a.Close)
	return a
}

// Requests returns the received registrations, in order.
func (a *FakeArchive) Requests() []ArchiveRequest {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]ArchiveRequest(nil), a.requests...)
}

func (a *FakeArchive) handle(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	a.requests = append(a.requests, ArchiveRequest{Header: r.Header.Clone(), Payload: payload})
	a.mu.Unlock()

	w.WriteHeader(a.status)
	_, _ = io.WriteString(w, a.body)
}
