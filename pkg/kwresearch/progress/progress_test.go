package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReporterMonotonicAndTerminal(t *testing.T) {
	ctx := context.Background()
	rec := &Recorder{}
	r := NewReporter(rec)

	r.Progress(ctx, 10, "ingest")
	r.Progress(ctx, 5, "late event")
	r.Progress(ctx, 150, "overshoot")
	r.Complete(ctx, map[string]any{"success": true})
	r.Progress(ctx, 100, "after complete")
	r.Fail(ctx, errors.New("after complete"))

	events := rec.Events()
	require.Len(t, events, 4)
	last := -1.0
	for _, e := range events[:3] {
		assert.Equal(t, TypeProgress, e.Type)
		assert.GreaterOrEqual(t, e.Percent, last)
		last = e.Percent
	}
	assert.Equal(t, 10.0, events[1].Percent)
	assert.Equal(t, 100.0, events[2].Percent)
	assert.True(t, events[3].Terminal())
	assert.Equal(t, TypeComplete, events[3].Type)
	assert.True(t, r.Done())
}

func TestReporterFail(t *testing.T) {
	rec := &Recorder{}
	r := NewReporter(rec)
	r.Fail(context.Background(), errors.New("missing column"))
	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, Event{Type: TypeError, Error: "missing column"}, events[0])
}

func TestReporterDetaches(t *testing.T) {
	rec := &Recorder{DetachAfter: 1}
	r := NewReporter(rec)
	ctx := context.Background()
	r.Progress(ctx, 5, "start")
	r.Progress(ctx, 10, "lost")
	assert.True(t, r.Detached())
	r.Complete(ctx, nil)
	assert.Len(t, rec.Events(), 1)
	assert.True(t, r.Done())
}

func TestChanDetachesOnDone(t *testing.T) {
	done := make(chan struct{})
	c := NewChan(1, done)
	ctx := context.Background()
	require.NoError(t, c.Send(ctx, Event{Type: TypeProgress, Percent: 1}))
	close(done)
	// buffer full and consumer gone
	assert.ErrorIs(t, c.Send(ctx, Event{Type: TypeProgress, Percent: 2}), ErrDetached)
	e := <-c.C
	assert.Equal(t, 1.0, e.Percent)
}

func TestJSONLinesWireFormat(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(NewJSONLines(&buf))
	ctx := context.Background()
	r.Progress(ctx, 35, "Detecting brands")
	r.Fail(ctx, errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, map[string]any{"type": "progress", "percent": 35.0, "message": "Detecting brands"}, first)

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, map[string]any{"type": "error", "error": "boom"}, second)
}
