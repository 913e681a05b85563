package scheduler

import (
	"github.com/specialistvlad/pipegrid/internal/dag"
	"github.com/specialistvlad/pipegrid/internal/nodeid"
)

func instanceIDs(t *dag.Template) []nodeid.Address {
	ids := make([]nodeid.Address, len(t.Instances))
	for i, inst := range t.Instances {
		ids[i] = inst.ID
	}
	return ids
}
