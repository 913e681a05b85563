package inmemorystore

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/nodeid"
	"github.com/specialistvlad/pipegrid/internal/nodestore"
)

// entry is the mutable state of one instance.
type entry struct {
	mu       sync.Mutex
	status   node.Status
	reason   string
	started  time.Time
	finished time.Time
}

// Store is an in-memory implementation of nodestore.Store.
type Store struct {
	states  sync.Map // Key: instance ID string, Value: *entry
	outputs sync.Map // Key: instance ID string, Value: map[string]string
	errors  sync.Map // Key: instance ID string, Value: error

	now func() time.Time
}

// New creates a new, empty in-memory instance state store.
func New() nodestore.Store {
	return &Store{now: time.Now}
}

func (s *Store) entry(id nodeid.Address) *entry {
	e, _ := s.states.LoadOrStore(id.String(), &entry{status: node.StatusPending})
	return e.(*entry)
}

// SetStatus validates and applies a transition, returning the previous status.
func (s *Store) SetStatus(ctx context.Context, id nodeid.Address, status node.Status, reason string) (node.Status, error) {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.status
	if !node.CanTransition(from, status) {
		return from, fmt.Errorf("%w: %s %s -> %s", nodestore.ErrIllegalTransition, id, from, status)
	}
	e.status = status
	e.reason = reason
	if status == node.StatusRunning {
		e.started = s.now()
	}
	if status.IsTerminal() {
		e.finished = s.now()
	}
	return from, nil
}

// GetStatus retrieves the execution status of a specific instance.
// If a status has not been set, it returns StatusPending.
func (s *Store) GetStatus(ctx context.Context, id nodeid.Address) (node.Status, error) {
	v, ok := s.states.Load(id.String())
	if !ok {
		return node.StatusPending, nil
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, nil
}

// Reason returns the reason recorded with the latest transition.
func (s *Store) Reason(ctx context.Context, id nodeid.Address) string {
	v, ok := s.states.Load(id.String())
	if !ok {
		return ""
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason
}

// SetOutput records the outputs of an instance.
func (s *Store) SetOutput(ctx context.Context, id nodeid.Address, output map[string]string) error {
	s.outputs.Store(id.String(), maps.Clone(output))
	return nil
}

// GetOutput retrieves the recorded outputs of an instance.
func (s *Store) GetOutput(ctx context.Context, id nodeid.Address) (map[string]string, error) {
	v, ok := s.outputs.Load(id.String())
	if !ok {
		return nil, nil
	}
	return maps.Clone(v.(map[string]string)), nil
}

// SetError records the failure error of an instance.
func (s *Store) SetError(ctx context.Context, id nodeid.Address, nodeErr error) error {
	s.errors.Store(id.String(), nodeErr)
	return nil
}

// GetError retrieves the recorded error of a failed instance.
func (s *Store) GetError(ctx context.Context, id nodeid.Address) (error, error) {
	v, ok := s.errors.Load(id.String())
	if !ok {
		return nil, nil
	}
	return v.(error), nil
}

// Timing returns the Running phase bounds of an instance.
func (s *Store) Timing(ctx context.Context, id nodeid.Address) nodestore.Timing {
	v, ok := s.states.Load(id.String())
	if !ok {
		return nodestore.Timing{}
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return nodestore.Timing{Started: e.started, Finished: e.finished}
}
