package registry

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/vk/sectionconf/internal/conferr"
	"github.com/vk/sectionconf/internal/scanner"
)

// SectionHandler owns the parameters of one or more sections. Handlers are
// compared by identity; Register rejects types that are not comparable.
type SectionHandler interface {
	// SectionStarted reports whether the handler wants the parameters of
	// the section.
	SectionStarted(name string) (bool, error)
	Parameter(section, key, value string) error
	SectionComplete(name string) error
}

// Finalizer is implemented by handlers that need a hook once the whole
// input has been parsed.
type Finalizer interface {
	ParseComplete() error
}

// Bound is a handler that declares its own section name.
type Bound interface {
	SectionHandler
	Section() string
}

// Registry holds the section handlers, aliases and observers of an
// application.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[string]SectionHandler
	aliases   map[string]string
	observers []scanner.Listener
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		handlers: map[string]SectionHandler{},
		aliases:  map[string]string{},
	}
}

// Register binds handler to the section name.
func (r *Registry) Register(name string, handler SectionHandler) error {
	if handler == nil {
		return conferr.New(conferr.KindRegistration, "nil handler for section %q", name)
	}
	if !reflect.TypeOf(handler).Comparable() {
		return conferr.New(conferr.KindRegistration, "handler %T for section %q is not comparable; register a pointer", handler, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.handlers[name]; ok {
		if existing == handler {
			return nil
		}
		return conferr.New(conferr.KindRegistration, "section %q is already owned by %T, cannot register %T", name, existing, handler)
	}
	if target, ok := r.aliases[name]; ok {
		return conferr.New(conferr.KindRegistration, "section %q is already an alias of %q", name, target)
	}

	next := maps.Clone(r.handlers)
	next[name] = handler
	r.handlers = next
	slog.Debug("Registered section handler.", "section", name, "handler", fmt.Sprintf("%T", handler))
	return nil
}

// RegisterBound binds a handler under the section name it declares.
func (r *Registry) RegisterBound(handler Bound) error {
	return r.Register(handler.Section(), handler)
}

// MustRegister is Register for static wiring; it panics on conflict.
func (r *Registry) MustRegister(name string, handler SectionHandler) {
	if err := r.Register(name, handler); err != nil {
		panic(err)
	}
}

// RegisterAlias makes the section alias dispatch to the handler of section.
func (r *Registry) RegisterAlias(alias, section string) error {
	if alias == section {
		return conferr.New(conferr.KindRegistration, "section %q cannot alias itself", alias)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[alias]; ok {
		return conferr.New(conferr.KindRegistration, "alias %q collides with a registered section", alias)
	}
	if existing, ok := r.aliases[alias]; ok {
		if existing == section {
			return nil
		}
		return conferr.New(conferr.KindRegistration, "alias %q already points to %q, cannot point it to %q", alias, existing, section)
	}
	if _, ok := r.aliases[section]; ok {
		return conferr.New(conferr.KindRegistration, "alias %q cannot point to another alias %q", alias, section)
	}

	next := maps.Clone(r.aliases)
	next[alias] = section
	r.aliases = next
	return nil
}

// Observe adds a listener that sees every event of every parse, whether or
// not a handler owns the section.
func (r *Registry) Observe(l scanner.Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(slices.Clip(r.observers), l)
}

// Resolve maps an alias to its section; other names map to themselves.
func (r *Registry) Resolve(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[name]; ok {
		return target
	}
	return name
}

// Handler returns the handler owning name, following aliases.
func (r *Registry) Handler(name string) (SectionHandler, bool) {
	canonical := r.Resolve(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[canonical]
	return h, ok
}

// Sections returns the registered section names in sorted order.
func (r *Registry) Sections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// snapshot returns the current maps and observers. The maps are never
// mutated in place, so they can be read without the lock.
func (r *Registry) snapshot() (map[string]SectionHandler, map[string]string, []scanner.Listener) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers, r.aliases, slices.Clip(r.observers)
}

// Dispatcher starts a parse against the current registrations.
func (r *Registry) Dispatcher() *Dispatcher {
	handlers, aliases, observers := r.snapshot()
	return &Dispatcher{handlers: handlers, aliases: aliases, observers: observers}
}
