package notify

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/specialistvlad/pipegrid/internal/events"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	event   string
	payload map[string]any
}

func newFake(verbose bool) (*SocketIO, *[]sent, *bool) {
	var got []sent
	closed := false
	s := newSocketIO(
		func(event string, args ...any) { got = append(got, sent{event: event, payload: args[0].(map[string]any)}) },
		func() { closed = true },
		Config{Verbose: verbose},
		slog.Default(),
	)
	return s, &got, &closed
}

func TestSocketIO_ForwardsTerminalTransitions(t *testing.T) {
	s, got, closed := newFake(false)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Observe(ctx, events.Event{Kind: events.KindRunStarted, RunID: "r1", Pipeline: "release", Time: at})
	s.Observe(ctx, events.Event{Kind: events.KindTransition, RunID: "r1", Instance: "build", Job: "build", From: node.StatusReady, To: node.StatusRunning, Time: at})
	s.Observe(ctx, events.Event{Kind: events.KindTransition, RunID: "r1", Instance: "build", Job: "build", From: node.StatusRunning, To: node.StatusFailed, Error: "exit status 2", Duration: 1500 * time.Millisecond, Time: at})
	require.NoError(t, s.Close())

	require.Len(t, *got, 2, "non-terminal transitions are dropped")
	assert.Equal(t, DefaultEvent, (*got)[0].event)
	assert.Equal(t, map[string]any{
		"kind":        "transition",
		"run_id":      "r1",
		"time":        "2026-03-01T12:00:00Z",
		"instance":    "build",
		"job":         "build",
		"from":        "running",
		"to":          "failed",
		"error":       "exit status 2",
		"duration_ms": int64(1500),
	}, (*got)[1].payload)
	assert.True(t, *closed)
}

func TestSocketIO_Verbose(t *testing.T) {
	s, got, _ := newFake(true)

	s.Observe(context.Background(), events.Event{Kind: events.KindTransition, To: node.StatusReady})

	assert.Len(t, *got, 1)
}

func TestDialSocketIO_Unreachable(t *testing.T) {
	_, err := DialSocketIO(context.Background(), Config{URL: "http://127.0.0.1:1/socket.io/", ConnectTimeout: 2 * time.Second})

	assert.Error(t, err)
}
