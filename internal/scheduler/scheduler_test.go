package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/AlieInmar1/pbtoado-sub002/internal/bulksync"
	"github.com/AlieInmar1/pbtoado-sub002/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingSyncer struct {
	runs     atomic.Int32
	deadline atomic.Bool
	block    chan struct{}
}

func (s *countingSyncer) Run(ctx context.Context, _ bulksync.Request) (bulksync.Result, error) {
	s.runs.Add(1)
	if _, ok := ctx.Deadline(); ok {
		s.deadline.Store(true)
	}
	if s.block != nil {
		select {
		case <-ctx.Done():
			return bulksync.Result{}, ctx.Err()
		case <-s.block:
		}
	}
	return bulksync.Result{Success: true}, nil
}

func TestRunner_RunsImmediatelyAndOnInterval(t *testing.T) {
	s := &countingSyncer{}
	r := New(s, 20*time.Millisecond, time.Minute, nil)
	r.Start(context.Background())
	defer r.Stop(context.Background())

	testutil.WaitFor(t, 2*time.Second, func() bool { return s.runs.Load() >= 3 }, "three scheduled runs")
	assert.True(t, s.deadline.Load(), "runs are bounded by the timeout")
}

func TestRunner_DisabledWithoutInterval(t *testing.T) {
	s := &countingSyncer{}
	r := New(s, 0, 0, nil)
	r.Start(context.Background())
	r.Stop(context.Background())
	assert.Equal(t, int32(0), s.runs.Load())
}

func TestRunner_StopCancelsInFlightRun(t *testing.T) {
	s := &countingSyncer{block: make(chan struct{})}
	r := New(s, time.Hour, 0, nil)
	r.Start(context.Background())

	testutil.WaitFor(t, time.Second, func() bool { return s.runs.Load() == 1 }, "first run started")
	done := make(chan struct{})
	go func() {
		r.Stop(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
