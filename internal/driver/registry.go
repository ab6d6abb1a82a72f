package driver

import (
	"fmt"
	"sort"
)

// NotFoundError is the typed outcome for unknown datasource names. The
// orchestrator turns it into a per-datasource error entry instead of
// failing the query.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("datasource %q is not registered", e.Name)
}

// Registry maps datasource names to driver descriptors. Populated once at
// process start; read-only at query time, so concurrent reads need no
// synchronization.
type Registry struct {
	byName map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]Descriptor{}}
}

func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("driver descriptor has no name")
	}
	if d.Driver == nil {
		return fmt.Errorf("driver %q has no implementation", d.Name)
	}
	if _, dup := r.byName[d.Name]; dup {
		return fmt.Errorf("driver %q registered twice", d.Name)
	}
	r.byName[d.Name] = d
	return nil
}

func (r *Registry) Lookup(name string) (Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, &NotFoundError{Name: name}
	}
	return d, nil
}

func (r *Registry) ListByTag(tag string) []Descriptor {
	var out []Descriptor
	for _, name := range r.Names() {
		if d := r.byName[name]; d.HasTag(tag) {
			out = append(out, d)
		}
	}
	return out
}

// Names returns the registered datasource names, sorted for determinism.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int { return len(r.byName) }
