// Package node defines the job instance, the schedulable vertex of an
// expanded pipeline, and its execution state machine.
package node

import (
	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/nodeid"
)

// Instance is one concrete expansion of a job template. It is immutable;
// mutable execution state lives in nodestore.
type Instance struct {
	// ID is the unique, structured identifier of the instance.
	ID nodeid.Address
	// Job is the template this instance was expanded from.
	Job *config.Job
	// Ordinal is the position of the instance in dispatch order across the
	// whole plan.
	Ordinal int
}

// Key returns the canonical string form of the instance ID.
func (i *Instance) Key() string {
	return i.ID.String()
}

// Matrix returns the bound matrix values.
func (i *Instance) Matrix() map[string]string {
	return i.ID.Values()
}
