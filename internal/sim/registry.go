package sim

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"simloop/internal/worker"
)

// ErrUnknownSimulation is returned for names that are not registered.
var ErrUnknownSimulation = errors.New("unknown simulation")

// Constructor builds a fresh simulation instance.
type Constructor func() worker.Simulation

// Info describes a registered simulation.
type Info struct {
	Name        string
	Title       string
	Description string
}

type entry struct {
	info Info
	ctor Constructor
}

// Registry maps simulation names to constructors. It is safe for concurrent
// use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Default returns a registry holding the built-in simulations.
func Default() *Registry {
	r := NewRegistry()
	r.Register(OrbitName, "bodies circling a shared centre", func() worker.Simulation { return NewOrbit() })
	r.Register(RippleName, "damped waves on a grid, click to disturb", func() worker.Simulation { return NewRipple() })
	return r
}

// Register installs ctor under name, replacing any previous registration.
func (r *Registry) Register(name, description string, ctor Constructor) {
	name = normalizeName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{
		info: Info{Name: name, Title: Title(name), Description: description},
		ctor: ctor,
	}
}

// New creates the named simulation. It satisfies worker.Factory.
func (r *Registry) New(name string) (worker.Simulation, error) {
	r.mu.RLock()
	e, ok := r.entries[normalizeName(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSimulation, name)
	}
	return e.ctor(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[normalizeName(name)]
	return ok
}

// List returns every registration sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Title turns a registry name such as "double_pendulum" into "Double Pendulum".
func Title(name string) string {
	words := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return cases.Title(language.English).String(words)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
