package inmemorytopology

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/topologystore"
)

// Store implements the topologystore.Store interface using maps, an order
// slice and a mutex for thread-safe concurrent access.
type Store struct {
	mu         sync.RWMutex
	order      []string
	jobs       map[string]*config.Job
	deps       map[string][]string // Key: job name, Value: jobs it depends on
	dependents map[string][]string // Key: job name, Value: jobs depending on it
}

// New creates a new, empty in-memory topology store.
func New() topologystore.Store {
	return &Store{
		jobs:       make(map[string]*config.Job),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// AddJob adds a new job template to the store.
func (s *Store) AddJob(ctx context.Context, job *config.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("%w: %q", topologystore.ErrDuplicateJob, job.Name)
	}
	s.jobs[job.Name] = job
	s.order = append(s.order, job.Name)
	return nil
}

// AddDependency creates a dependency link: 'to' depends on 'from'.
func (s *Store) AddDependency(ctx context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[from]; !exists {
		return fmt.Errorf("%w: dependency source %q", topologystore.ErrUnknownJob, from)
	}
	if _, exists := s.jobs[to]; !exists {
		return fmt.Errorf("%w: dependency target %q", topologystore.ErrUnknownJob, to)
	}

	if slices.Contains(s.deps[to], from) {
		return nil
	}
	s.deps[to] = append(s.deps[to], from)
	s.dependents[from] = append(s.dependents[from], to)
	return nil
}

// Job retrieves a single job template by name.
func (s *Store) Job(ctx context.Context, name string) (*config.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[name]
	return job, ok
}

// AllJobs returns every job template in insertion order.
func (s *Store) AllJobs(ctx context.Context) []*config.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*config.Job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	return jobs
}

// DependenciesOf returns the names of all jobs the given job depends on.
func (s *Store) DependenciesOf(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.jobs[name]; !exists {
		return nil, fmt.Errorf("%w: %q", topologystore.ErrUnknownJob, name)
	}
	return slices.Clone(s.deps[name]), nil
}

// DependentsOf returns the names of all jobs depending on the given job.
func (s *Store) DependentsOf(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.jobs[name]; !exists {
		return nil, fmt.Errorf("%w: %q", topologystore.ErrUnknownJob, name)
	}
	return slices.Clone(s.dependents[name]), nil
}
