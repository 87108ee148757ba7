package backends

import (
	"errors"
	"fmt"
	"log"

	"marginalia/internal/entities"
)

var (
	// ErrDuplicateBackend means two backends registered the same ID.
	ErrDuplicateBackend = errors.New("backend already registered")

	// ErrInvalidCapability means a backend declared a capability without
	// implementing its required operations, or declared none at all.
	// This is a backend-authoring defect and is fatal at registration
	// time so it can never surface mid-import.
	ErrInvalidCapability = errors.New("backend capability not implemented")
)

// Registry holds the backends enabled for this run, indexed by capability.
// Registration order is load-bearing: Query returns backends in the order
// they were registered, and the import orchestrator tries them in exactly
// that order.
type Registry struct {
	ordered []Backend
	byID    map[string]Backend
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Backend)}
}

// Register validates and adds a backend.
func (r *Registry) Register(b Backend) error {
	if err := Validate(b); err != nil {
		return err
	}

	id := b.Descriptor().ID
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateBackend, id)
	}

	r.byID[id] = b
	r.ordered = append(r.ordered, b)
	return nil
}

// Validate checks that the backend's declared capabilities match what it
// actually implements.
func Validate(b Backend) error {
	desc := b.Descriptor()

	if len(desc.Capabilities) == 0 {
		return fmt.Errorf("%w: %q declares no capabilities", ErrInvalidCapability, desc.ID)
	}

	for _, c := range desc.Capabilities {
		switch c {
		case entities.CapabilityFetch:
			if _, ok := b.(Fetcher); !ok {
				return fmt.Errorf("%w: %q declares fetch but does not implement Fetcher", ErrInvalidCapability, desc.ID)
			}
		case entities.CapabilityExport:
			if _, ok := b.(Parser); !ok {
				return fmt.Errorf("%w: %q declares export but does not implement Parser", ErrInvalidCapability, desc.ID)
			}
		default:
			return fmt.Errorf("%w: %q declares unknown capability %q", ErrInvalidCapability, desc.ID, c)
		}
	}
	return nil
}

// Query returns the backends declaring the given capability, in
// registration order.
func (r *Registry) Query(c entities.Capability) []Backend {
	var out []Backend
	for _, b := range r.ordered {
		if b.Descriptor().Has(c) {
			out = append(out, b)
		}
	}
	return out
}

// Get looks a backend up by ID.
func (r *Registry) Get(id string) (Backend, bool) {
	b, ok := r.byID[id]
	return b, ok
}

// Descriptors lists all registered backends in registration order.
func (r *Registry) Descriptors() []entities.BackendDescriptor {
	out := make([]entities.BackendDescriptor, 0, len(r.ordered))
	for _, b := range r.ordered {
		out = append(out, b.Descriptor())
	}
	return out
}

// Loader constructs one backend. Loaders come from configuration; a loader
// that fails does not prevent the rest of the registry from loading.
type Loader func() (Backend, error)

// LoadFailure reports one backend that could not be loaded or registered.
type LoadFailure struct {
	Name string
	Err  error
}

// Load runs each loader in order and registers the backends that load
// cleanly. Failures are returned alongside the populated registry.
func Load(r *Registry, loaders map[string]Loader, order []string) []LoadFailure {
	var failures []LoadFailure
	for _, name := range order {
		loader, ok := loaders[name]
		if !ok {
			failures = append(failures, LoadFailure{Name: name, Err: fmt.Errorf("unknown backend %q", name)})
			continue
		}
		b, err := loader()
		if err != nil {
			log.Printf("Backend %s failed to load: %v", name, err)
			failures = append(failures, LoadFailure{Name: name, Err: err})
			continue
		}
		if err := r.Register(b); err != nil {
			log.Printf("Backend %s failed to register: %v", name, err)
			failures = append(failures, LoadFailure{Name: name, Err: err})
		}
	}
	return failures
}
