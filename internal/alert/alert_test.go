package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/internal/metrics"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func testAlert() types.Alert {
	return types.Alert{
		Level:     types.AlertLevelError,
		Category:  "ado_error",
		ItemID:    "feat-1",
		Message:   "work item create failed",
		Timestamp: time.Now(),
	}
}

func TestConsoleSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := &ConsoleSink{out: &buf}
	assert.Equal(t, "console", sink.Name())

	ctx := context.Background()
	for _, level := range []types.AlertLevel{types.AlertLevelError, types.AlertLevelWarning, types.AlertLevelInfo} {
		a := testAlert()
		a.Level = level
		assert.NoError(t, sink.Send(ctx, a))
	}
	a := testAlert()
	a.ItemID = ""
	require.NoError(t, sink.Send(ctx, a))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "[feat-1] work item create failed")
	assert.NotContains(t, lines[3], "[feat-1]")
}

func TestWebhookSink_Send_Success(t *testing.T) {
	var received []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sink := NewWebhookSink(ts.URL)
	alert := testAlert()

	require.NoError(t, sink.Send(context.Background(), alert))

	var got types.Alert
	require.NoError(t, json.Unmarshal(received, &got))
	assert.Equal(t, alert.Message, got.Message)
	assert.Equal(t, alert.ItemID, got.ItemID)
}

func TestWebhookSink_Send_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := NewWebhookSink(ts.URL).Send(context.Background(), testAlert())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFileSink_Send(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	assert.Equal(t, "file", sink.Name())

	alert := testAlert()
	require.NoError(t, sink.Send(context.Background(), alert))
	require.NoError(t, sink.Send(context.Background(), alert))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	var got types.Alert
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, alert.Message, got.Message)
}

func TestFileSink_Unwritable(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "missing", "alerts.jsonl"))
	assert.Error(t, err)
}

// errSink is a test sink that always returns an error.
type errSink struct{}

func (s *errSink) Send(_ context.Context, _ types.Alert) error { return fmt.Errorf("sink error") }
func (s *errSink) Name() string                                { return "error-sink" }

// recordSink records all alerts sent to it.
type recordSink struct {
	alerts []types.Alert
}

func (s *recordSink) Send(_ context.Context, a types.Alert) error {
	s.alerts = append(s.alerts, a)
	return nil
}
func (s *recordSink) Name() string { return "record-sink" }

func TestDispatcher_MultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	d := &Dispatcher{sinks: []Sink{s1, s2}, logger: slog.Default()}

	alert := testAlert()
	d.Dispatch(context.Background(), alert)

	assert.Len(t, s1.alerts, 1)
	assert.Len(t, s2.alerts, 1)
	assert.Equal(t, alert.Message, s1.alerts[0].Message)
}

func TestDispatcher_SinkError_ContinuesOthers(t *testing.T) {
	recording := &recordSink{}
	d := &Dispatcher{
		sinks:  []Sink{&errSink{}, recording},
		logger: slog.Default(),
	}

	failedBefore := metrics.AlertsFailed.Value()
	d.Dispatch(context.Background(), testAlert())

	assert.Len(t, recording.alerts, 1)
	assert.Equal(t, failedBefore+1, metrics.AlertsFailed.Value())
}

func TestDispatcher_AlertFunc(t *testing.T) {
	d, err := NewDispatcher(nil, nil)
	require.NoError(t, err)
	rec := &recordSink{}
	d.AddSink(rec)

	d.AlertFunc()(testAlert())
	assert.Len(t, rec.alerts, 1)
}

func TestNewDispatcher_Configs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	d, err := NewDispatcher([]types.AlertConfig{
		{Type: types.AlertConsole},
		{Type: types.AlertWebhook, URL: "http://localhost:1"},
		{Type: types.AlertFile, Path: path},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, d.sinks, 3)

	_, err = NewDispatcher([]types.AlertConfig{{Type: types.AlertWebhook}}, nil)
	assert.Error(t, err)
	_, err = NewDispatcher([]types.AlertConfig{{Type: "pager"}}, nil)
	assert.Error(t, err)
}
