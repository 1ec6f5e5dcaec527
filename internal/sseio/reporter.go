// Package sseio writes Server-Sent Events frames in the strict
// "event: <type>\ndata: <json>\n\n" format shared by every streaming
// endpoint: query_stream, orchestrate_stream, and the workflow runtime.
package sseio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Reporter emits ordered SSE frames to one HTTP response, matching the
// ResponseChunk-over-a-channel shape the chat providers streamed, generalized
// to any named event type plus a JSON-serializable payload.
type Reporter interface {
	// Emit writes one SSE frame. Implementations must be safe to call from
	// multiple goroutines so a workflow's parallel stage can report.
	Emit(event string, payload any) error
}

// HTTPReporter writes frames directly to an http.ResponseWriter, flushing
// after every frame so clients see steps as they happen rather than once
// the handler returns.
type HTTPReporter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewHTTPReporter prepares w for SSE: it sets the standard headers and wraps
// w for framed writes. The caller must already have written no other
// response headers or body bytes to w.
func NewHTTPReporter(w http.ResponseWriter) *HTTPReporter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)
	return &HTTPReporter{w: w, flusher: flusher}
}

// Emit writes one "event: <event>\ndata: <json(payload)>\n\n" frame.
func (r *HTTPReporter) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sseio: marshal payload for event %q: %w", event, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := fmt.Fprintf(r.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("sseio: write frame: %w", err)
	}
	if r.flusher != nil {
		r.flusher.Flush()
	}
	return nil
}

// Frame is a single recorded SSE event, used by RecordingReporter for tests
// that need to assert on emitted event ordering without an HTTP server.
type Frame struct {
	Event   string
	Payload any
}

// RecordingReporter buffers frames in memory instead of writing them to a
// socket, for use in component tests that assert on the emitted sequence.
type RecordingReporter struct {
	mu     sync.Mutex
	Frames []Frame
}

// NewRecordingReporter returns an empty RecordingReporter.
func NewRecordingReporter() *RecordingReporter {
	return &RecordingReporter{}
}

// Emit appends the frame to Frames.
func (r *RecordingReporter) Emit(event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Frames = append(r.Frames, Frame{Event: event, Payload: payload})
	return nil
}
