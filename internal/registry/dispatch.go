package registry

import (
	"maps"
	"slices"

	"github.com/vk/sectionconf/internal/conferr"
	"github.com/vk/sectionconf/internal/scanner"
)

// Dispatcher is the scanner.Listener of a single parse. It routes each
// section's events to the owning handler and every event to the observers.
type Dispatcher struct {
	handlers  map[string]SectionHandler
	aliases   map[string]string
	observers []scanner.Listener

	open    string
	opened  bool
	current SectionHandler // nil when unowned or declined
}

var _ scanner.Listener = (*Dispatcher)(nil)

func (d *Dispatcher) canonical(name string) string {
	if target, ok := d.aliases[name]; ok {
		return target
	}
	return name
}

// SectionStarted implements scanner.Listener. It reports true when the
// owning handler accepts the section or any observer is present.
func (d *Dispatcher) SectionStarted(name string) (bool, error) {
	if d.opened {
		return false, conferr.New(conferr.KindDispatch, "section %q started while section %q is still open", name, d.open)
	}

	canonical := d.canonical(name)
	accepted := false
	d.current = nil
	if h, ok := d.handlers[canonical]; ok {
		var err error
		if accepted, err = h.SectionStarted(canonical); err != nil {
			return false, err
		}
		if accepted {
			d.current = h
		}
	}

	for _, o := range d.observers {
		if _, err := o.SectionStarted(name); err != nil {
			return false, err
		}
	}

	d.open, d.opened = name, true
	return accepted || len(d.observers) > 0, nil
}

// Parameter implements scanner.Listener. A parameter for a section that is
// not the open one is an error.
func (d *Dispatcher) Parameter(section, key, value string) error {
	if !d.opened || section != d.open {
		return conferr.New(conferr.KindDispatch, "parameter %q dispatched to section %q, which was never started", key, section)
	}

	if d.current != nil {
		if err := d.current.Parameter(d.canonical(section), key, value); err != nil {
			return err
		}
	}
	for _, o := range d.observers {
		if err := o.Parameter(section, key, value); err != nil {
			return err
		}
	}
	return nil
}

// SectionComplete implements scanner.Listener.
func (d *Dispatcher) SectionComplete(name string) error {
	if !d.opened || name != d.open {
		return conferr.New(conferr.KindDispatch, "section %q completed but was never started", name)
	}

	current := d.current
	d.opened, d.current = false, nil

	if current != nil {
		if err := current.SectionComplete(d.canonical(name)); err != nil {
			return err
		}
	}
	for _, o := range d.observers {
		if err := o.SectionComplete(name); err != nil {
			return err
		}
	}
	return nil
}

// ParseComplete implements scanner.Listener. Every distinct handler that
// is a Finalizer runs exactly once, then every observer.
func (d *Dispatcher) ParseComplete() error {
	seen := make(map[SectionHandler]struct{}, len(d.handlers))
	for _, name := range slices.Sorted(maps.Keys(d.handlers)) {
		h := d.handlers[name]
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		if f, ok := h.(Finalizer); ok {
			if err := f.ParseComplete(); err != nil {
				return err
			}
		}
	}

	for _, o := range d.observers {
		if err := o.ParseComplete(); err != nil {
			return err
		}
	}
	return nil
}
