package dag

import (
	"maps"
	"slices"

	"github.com/specialistvlad/pipegrid/internal/condition"
	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/node"
)

// Template is a validated job template together with its expansion.
type Template struct {
	Job *config.Job
	// Condition is nil when the job always runs.
	Condition *condition.Expression
	// Instances are in matrix order.
	Instances []*node.Instance
	// Needs and Dependents are job names in declaration order.
	Needs      []string
	Dependents []string
}

// Name returns the job name.
func (t *Template) Name() string { return t.Job.Name }

// Plan is the immutable, validated and expanded pipeline.
type Plan struct {
	name      string
	env       map[string]string
	order     []string
	topoOrder []string
	templates map[string]*Template
	instances []*node.Instance
	byKey     map[string]*node.Instance
}

// Name returns the pipeline name.
func (p *Plan) Name() string { return p.name }

// Env returns a copy of the pipeline-level environment.
func (p *Plan) Env() map[string]string { return maps.Clone(p.env) }

// Templates returns every template in declaration order.
func (p *Plan) Templates() []*Template {
	out := make([]*Template, len(p.order))
	for i, name := range p.order {
		out[i] = p.templates[name]
	}
	return out
}

// Template returns a template by job name.
func (p *Plan) Template(name string) (*Template, bool) {
	t, ok := p.templates[name]
	return t, ok
}

// TopologicalOrder returns job names such that every job follows all the
// jobs it needs.
func (p *Plan) TopologicalOrder() []string {
	return slices.Clone(p.topoOrder)
}

// Instances returns every instance in dispatch order.
func (p *Plan) Instances() []*node.Instance {
	return slices.Clone(p.instances)
}

// Instance looks up an instance by its canonical ID.
func (p *Plan) Instance(key string) (*node.Instance, bool) {
	i, ok := p.byKey[key]
	return i, ok
}
