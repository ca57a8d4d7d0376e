// Package modules holds the feature modules a user can pick from the main
// menu. Modules register explicitly; nothing is discovered by reflection or
// import side effects.
package modules

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Keys of the built-in modules. They double as callback data.
const (
	KeyEmail = "email_mode"
	KeyChat  = "chatgpt_mode"
	KeyAudio = "audio_transcription"
	KeyID    = "id_mode"
)

// Descriptor is what the menu needs to know about a module.
type Descriptor struct {
	Key         string
	Label       string
	Order       int
	Description string
}

// Module is a selectable feature.
type Module interface {
	Describe() Descriptor
	// Configured reports whether the module's backing services are set up.
	Configured() bool
}

// ErrDuplicate is returned when a key is registered twice.
var ErrDuplicate = errors.New("modules: duplicate key")

// Static is a Module with a fixed descriptor and configuration verdict.
type Static struct {
	Descriptor
	Ready bool
}

var _ Module = Static{}

// Describe returns the descriptor.
func (s Static) Describe() Descriptor { return s.Descriptor }

// Configured returns Ready.
func (s Static) Configured() bool { return s.Ready }

// Registry is a concurrency-safe set of modules keyed by Descriptor.Key.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds m. Empty keys and duplicates are rejected.
func (r *Registry) Register(m Module) error {
	d := m.Describe()
	if d.Key == "" {
		return errors.New("modules: empty key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[d.Key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.Key)
	}
	r.modules[d.Key] = m
	return nil
}

// Lookup returns the module registered under key.
func (r *Registry) Lookup(key string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[key]
	return m, ok
}

// Configured reports whether key is registered and configured.
func (r *Registry) Configured(key string) bool {
	m, ok := r.Lookup(key)
	return ok && m.Configured()
}

// Menu returns descriptors sorted by Order, then Key.
func (r *Registry) Menu() []Descriptor {
	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m.Describe())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Key < out[j].Key
	})
	return out
}
