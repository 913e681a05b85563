package runcontext

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/specialistvlad/pipegrid/internal/condition"
	"github.com/specialistvlad/pipegrid/internal/node"
	"github.com/specialistvlad/pipegrid/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
)

// Context is the per-run shared state. It is safe for concurrent use.
type Context struct {
	runID   string
	trigger Trigger
	env     map[string]string
	secrets map[string]SecretHandle

	// outputs maps "instance\x00key" to the published value.
	outputs sync.Map
	// results maps job name to its aggregate node.Outcome.
	results sync.Map

	mu sync.RWMutex
	// published lists keys per instance in publish order.
	published map[string][]string
	// instances maps job name to its instance addresses, used to resolve
	// bare job references and binding lists written out of axis order.
	instances map[string][]nodeid.Address
}

// New creates an empty run context.
func New(runID string, trigger Trigger, env map[string]string, secrets map[string]SecretHandle) *Context {
	return &Context{
		runID:     runID,
		trigger:   trigger,
		env:       maps.Clone(env),
		secrets:   maps.Clone(secrets),
		published: make(map[string][]string),
		instances: make(map[string][]nodeid.Address),
	}
}

// RunID returns the identifier of the run.
func (c *Context) RunID() string { return c.runID }

// Trigger returns the trigger attributes.
func (c *Context) Trigger() Trigger { return c.trigger }

// Env returns a copy of the run environment.
func (c *Context) Env() map[string]string { return maps.Clone(c.env) }

// Secret returns the handle registered under name.
func (c *Context) Secret(name string) (SecretHandle, bool) {
	h, ok := c.secrets[name]
	return h, ok
}

// SecretNames returns the registered secret names, sorted.
func (c *Context) SecretNames() []string {
	return sortedKeys(c.secrets)
}

// RegisterInstances records which instances belong to a job. dag.Build's
// plan is the source; the context only needs it to tell a bare job name
// apart from an ambiguous matrix reference.
func (c *Context) RegisterInstances(job string, ids []nodeid.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[job] = slices.Clone(ids)
}

// InstanceID returns the ID of the job's instance carrying exactly the given
// bindings, whatever order they are listed in. Unregistered jobs and binding
// sets no instance carries come back in the order given.
func (c *Context) InstanceID(job string, bindings []nodeid.Binding) string {
	want := nodeid.New(job, bindings...)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.instances[job] {
		if maps.Equal(id.Values(), want.Values()) {
			return id.String()
		}
	}
	return want.String()
}

func outputKey(instance, key string) string {
	return instance + "\x00" + key
}

// Publish records an output value for an instance. A second publish of the
// same (instance, key) fails with DuplicateOutputError and leaves the first
// value untouched.
func (c *Context) Publish(instance, key, value string) error {
	if _, loaded := c.outputs.LoadOrStore(outputKey(instance, key), value); loaded {
		return &DuplicateOutputError{Instance: instance, Key: key}
	}
	c.mu.Lock()
	c.published[instance] = append(c.published[instance], key)
	c.mu.Unlock()
	return nil
}

// Read returns a published output. ref is an instance ID, or a job name
// when the job has a single instance.
func (c *Context) Read(ref, key string) (string, error) {
	instance, err := c.resolve(ref, key)
	if err != nil {
		return "", err
	}
	v, ok := c.outputs.Load(outputKey(instance, key))
	if !ok {
		return "", &UndefinedOutputError{Ref: ref, Key: key, Reason: "not published"}
	}
	return v.(string), nil
}

// Outputs returns a copy of everything an instance published.
func (c *Context) Outputs(instance string) map[string]string {
	c.mu.RLock()
	keys := append([]string(nil), c.published[instance]...)
	c.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := c.outputs.Load(outputKey(instance, k)); ok {
			out[k] = v.(string)
		}
	}
	return out
}

func (c *Context) resolve(ref, key string) (string, error) {
	c.mu.RLock()
	ids, isJob := c.instances[ref]
	c.mu.RUnlock()

	if !isJob {
		return ref, nil
	}
	if len(ids) != 1 {
		return "", &UndefinedOutputError{
			Ref:    ref,
			Key:    key,
			Reason: fmt.Sprintf("job has %d instances, address one of them", len(ids)),
		}
	}
	return ids[0].String(), nil
}

// SetResult records the aggregate outcome of a template once all its
// instances are terminal.
func (c *Context) SetResult(job string, outcome node.Outcome) error {
	if _, loaded := c.results.LoadOrStore(job, outcome); loaded {
		return fmt.Errorf("result of job %q was already recorded", job)
	}
	return nil
}

// Result returns the aggregate outcome of a resolved template.
func (c *Context) Result(job string) (node.Outcome, bool) {
	v, ok := c.results.Load(job)
	if !ok {
		return "", false
	}
	return v.(node.Outcome), true
}

// Scope returns the condition scope seen by one instance. Matrix values
// come from the instance's own bindings.
func (c *Context) Scope(instance nodeid.Address) condition.Scope {
	return &instanceScope{ctx: c, instance: instance}
}

type instanceScope struct {
	ctx      *Context
	instance nodeid.Address
}

// Lookup implements condition.Scope.
func (s *instanceScope) Lookup(path []condition.Segment) (cty.Value, error) {
	ref := condition.Reference{Path: path}
	fail := func(format string, args ...any) (cty.Value, error) {
		return cty.NilVal, fmt.Errorf(format, args...)
	}
	if len(path) == 0 {
		return fail("empty reference")
	}

	root := path[0].Name
	switch root {
	case "branch", "commit", "ref", "event":
		if len(path) != 1 {
			return fail("%s is a string", root)
		}
		v, _ := s.ctx.trigger.Field(root)
		return cty.StringVal(v), nil

	case "trigger":
		if len(path) != 2 {
			return fail("expected trigger.<field>")
		}
		v, ok := s.ctx.trigger.Field(path[1].Name)
		if !ok {
			return fail("trigger has no field %q", path[1].Name)
		}
		return cty.StringVal(v), nil

	case "env":
		if len(path) != 2 {
			return fail("expected env.<NAME>")
		}
		v, ok := s.ctx.env[path[1].Name]
		if !ok {
			return fail("environment value %q is not defined", path[1].Name)
		}
		return cty.StringVal(v), nil

	case "matrix":
		if len(path) != 2 {
			return fail("expected matrix.<axis>")
		}
		v, ok := s.instance.Value(path[1].Name)
		if !ok {
			return fail("%s has no matrix axis %q", s.instance, path[1].Name)
		}
		return cty.StringVal(v), nil

	case "needs":
		return s.lookupNeeds(ref)
	}
	return fail("unknown namespace %q", root)
}

func (s *instanceScope) lookupNeeds(ref condition.Reference) (cty.Value, error) {
	path := ref.Path
	if len(path) < 3 {
		return cty.NilVal, fmt.Errorf("expected needs.<job>.result or needs.<job>.outputs.<key>")
	}
	job := path[1].Name
	rest := path[2:]
	target := job
	if rest[0].Index {
		bindings, err := nodeid.ParseBindings(rest[0].Name)
		if err != nil {
			return cty.NilVal, err
		}
		target = s.ctx.InstanceID(job, bindings)
		rest = rest[1:]
	}

	switch {
	case len(rest) == 1 && rest[0].Name == "result" && target == job:
		outcome, ok := s.ctx.Result(job)
		if !ok {
			return cty.NilVal, fmt.Errorf("job %q has not resolved", job)
		}
		return cty.StringVal(string(outcome)), nil
	case len(rest) == 2 && rest[0].Name == "outputs" && !rest[1].Index:
		v, err := s.ctx.Read(target, rest[1].Name)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(v), nil
	}
	return cty.NilVal, fmt.Errorf("%s does not name a result or an output", ref)
}
