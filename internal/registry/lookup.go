package registry

import (
	"github.com/vk/sectionconf/internal/conferr"
)

// Configurer is implemented by handlers that produce a typed configuration.
type Configurer[T any] interface {
	Configuration() T
}

// GetSection returns the configuration produced by the handler of section
// name. It fails when no handler owns the section or the handler does not
// produce a T.
func GetSection[T any](r *Registry, name string) (T, error) {
	var zero T
	h, ok := r.Handler(name)
	if !ok {
		return zero, conferr.New(conferr.KindRegistration, "no handler registered for section %q", name)
	}
	c, ok := h.(Configurer[T])
	if !ok {
		return zero, conferr.New(conferr.KindRegistration, "handler %T of section %q does not produce %T", h, name, zero)
	}
	return c.Configuration(), nil
}

// Get returns the configuration of the single handler that produces a T
// under the section name it declares itself.
func Get[T any](r *Registry) (T, error) {
	var zero T
	var found []string
	var result T

	for _, name := range r.Sections() {
		h, _ := r.Handler(name)
		b, ok := h.(Bound)
		if !ok || b.Section() != name {
			continue
		}
		if c, ok := h.(Configurer[T]); ok {
			found = append(found, name)
			result = c.Configuration()
		}
	}

	switch len(found) {
	case 0:
		return zero, conferr.New(conferr.KindRegistration, "no registered section produces %T", zero)
	case 1:
		return result, nil
	default:
		return zero, conferr.New(conferr.KindRegistration, "sections %q all produce %T, look one up by name", found, zero)
	}
}
