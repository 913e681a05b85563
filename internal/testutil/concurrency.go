package testutil

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/specialistvlad/pipegrid/internal/registry"
)

// SleeperModule is a shared, self-contained module for concurrency tests.
// It records the execution time of each step that uses it.
type SleeperModule struct {
	mu             sync.Mutex
	executionTimes map[string]*ExecutionRecord
	sleepDuration  time.Duration
}

// NewSleeperModule creates a new sleeper module for testing.
func NewSleeperModule(sleep time.Duration) *SleeperModule {
	return &SleeperModule{
		executionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
	}
}

type sleeperInput struct {
	ID   string `pipegrid:"id"`
	Fail bool   `pipegrid:"fail,optional"`
}

// Register registers the "sleep" action.
func (m *SleeperModule) Register(r *registry.Registry) {
	r.RegisterAction("sleep", &registry.RegisteredAction{
		NewInput:  func() any { return new(sleeperInput) },
		InputType: reflect.TypeOf(sleeperInput{}),
		Fn: func(ctx context.Context, _ *registry.Call, input *sleeperInput) (map[string]string, error) {
			start := time.Now()
			select {
			case <-time.After(m.sleepDuration):
			case <-ctx.Done():
				return nil, context.Cause(ctx)
			}
			end := time.Now()

			m.mu.Lock()
			m.executionTimes[input.ID] = &ExecutionRecord{Start: start, End: end}
			m.mu.Unlock()

			if input.Fail {
				return nil, errors.New("sleeper asked to fail")
			}
			return map[string]string{"id": input.ID}, nil
		},
	})
}

// Record returns the execution record of a step by id.
func (m *SleeperModule) Record(id string) (*ExecutionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.executionTimes[id]
	return rec, ok
}

// Ran returns how many sleeper steps finished.
func (m *SleeperModule) Ran() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.executionTimes)
}
