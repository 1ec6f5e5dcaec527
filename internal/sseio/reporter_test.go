package sseio

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPReporterWritesFramedEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	reporter := NewHTTPReporter(rec)

	require.NoError(t, reporter.Emit("step", map[string]string{"stage": "dense"}))
	require.NoError(t, reporter.Emit("final", map[string]any{"answer": "ok"}))

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "event: step\ndata: "))
	require.Contains(t, body, "event: final\ndata: ")
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestRecordingReporterPreservesOrder(t *testing.T) {
	reporter := NewRecordingReporter()
	require.NoError(t, reporter.Emit("a", 1))
	require.NoError(t, reporter.Emit("b", 2))

	require.Equal(t, []string{"a", "b"}, []string{reporter.Frames[0].Event, reporter.Frames[1].Event})
}
