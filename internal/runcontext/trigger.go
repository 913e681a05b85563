package runcontext

import (
	"fmt"
	"os"
	"sort"
)

// Trigger carries the attributes of the event that started the run.
type Trigger struct {
	Branch     string `env:"BRANCH"`
	Commit     string `env:"COMMIT"`
	Ref        string `env:"REF"`
	Event      string `env:"EVENT" envDefault:"manual"`
	Repository string `env:"REPOSITORY"`
}

// Field returns a trigger attribute by its condition name.
func (t Trigger) Field(name string) (string, bool) {
	switch name {
	case "branch":
		return t.Branch, true
	case "commit":
		return t.Commit, true
	case "ref":
		return t.Ref, true
	case "event":
		return t.Event, true
	case "repository":
		return t.Repository, true
	}
	return "", false
}

// SecretHandle names a secret without carrying its value. Values are only
// resolved when a step runner builds a process environment.
type SecretHandle struct {
	Name string
	// Source is the environment variable the value is read from.
	Source string
}

func (h SecretHandle) String() string {
	return fmt.Sprintf("secret(%s)", h.Name)
}

// Resolve reads the secret value.
func (h SecretHandle) Resolve() (string, bool) {
	return os.LookupEnv(h.Source)
}

// SecretsFromEnv builds handles for the given names, each read from an
// environment variable of the same name.
func SecretsFromEnv(names ...string) map[string]SecretHandle {
	out := make(map[string]SecretHandle, len(names))
	for _, n := range names {
		out[n] = SecretHandle{Name: n, Source: n}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
