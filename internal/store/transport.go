package store

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
)

const maxErrorBody = 64 << 10

// response is what the transport saw for the most recent failed call.
type response struct {
	status   int
	messages []string
}

// recordingTransport keeps the status and error messages of the last
// non-success response so they can be reported verbatim. The SDK rewrites
// 5xx messages to a generic text.
type recordingTransport struct {
	next http.RoundTripper

	mu   sync.Mutex
	last *response
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	rec := &response{status: resp.StatusCode}
	if readErr == nil {
		rec.messages = parseErrorMessages(body)
	}
	t.mu.Lock()
	t.last = rec
	t.mu.Unlock()
	return resp, nil
}

func (t *recordingTransport) reset() {
	t.mu.Lock()
	t.last = nil
	t.mu.Unlock()
}

func (t *recordingTransport) lastFailure() *response {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func parseErrorMessages(body []byte) []string {
	var envelope struct {
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	var out []string
	for _, e := range envelope.Errors {
		if e.Message != "" {
			out = append(out, e.Message)
		}
	}
	return out
}
