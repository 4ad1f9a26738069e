package hostmod

import "fmt"

// Registry holds the fixed, ordered set of modules for this process.
// Order matters: later modules may rely on earlier ones' side effects.
type Registry struct {
	ordered []Module
	byName  map[string]Module
}

// NewRegistry builds the registry and enforces the static invariants:
// unique module names and exclusive ownership of managed files.
func NewRegistry(mods ...Module) (*Registry, error) {
	r := &Registry{byName: make(map[string]Module, len(mods))}
	fileOwner := make(map[string]string)
	for _, m := range mods {
		name := m.Name()
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate module name %q", name)
		}
		for _, f := range m.ManagedFiles() {
			if owner, taken := fileOwner[f]; taken {
				return nil, fmt.Errorf("modules %q and %q both declare managed file %s", owner, name, f)
			}
			fileOwner[f] = name
		}
		r.byName[name] = m
		r.ordered = append(r.ordered, m)
	}
	return r, nil
}

// Get returns the module registered under name.
func (r *Registry) Get(name string) (Module, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Modules returns all modules in registration order.
func (r *Registry) Modules() []Module { return r.ordered }

// Names returns all module names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, m := range r.ordered {
		names = append(names, m.Name())
	}
	return names
}

// Select resolves a selection into modules, preserving registry order.
// "all" or an empty selection selects every module.
func (r *Registry) Select(names []string) ([]Module, error) {
	if len(names) == 0 || (len(names) == 1 && names[0] == "all") {
		return r.ordered, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.byName[n]; !ok {
			return nil, fmt.Errorf("unknown module %q (known: %v)", n, r.Names())
		}
		want[n] = true
	}
	var out []Module
	for _, m := range r.ordered {
		if want[m.Name()] {
			out = append(out, m)
		}
	}
	return out, nil
}
