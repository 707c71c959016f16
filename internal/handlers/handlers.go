// Package handlers provides section handlers that need no mapping table:
// Map keeps parameters as strings, Properties keeps them in a
// magiconair/properties set.
package handlers

import (
	"log/slog"
	"maps"

	"github.com/magiconair/properties"
	"github.com/vk/sectionconf/internal/conferr"
)

// Map collects the parameters of its section into a string map. When
// registered under several section names they all merge into one map; the
// last value of a key wins.
type Map struct {
	section string
	values  map[string]string
}

// NewMap creates a Map bound to section.
func NewMap(section string) *Map {
	return &Map{section: section, values: map[string]string{}}
}

// Section returns the section the Map is bound to.
func (m *Map) Section() string { return m.section }

// SectionStarted accepts every section.
func (m *Map) SectionStarted(string) (bool, error) { return true, nil }

// Parameter stores the value.
func (m *Map) Parameter(section, key, value string) error {
	m.values[key] = value
	return nil
}

// SectionComplete does nothing.
func (m *Map) SectionComplete(string) error { return nil }

// Get returns one value.
func (m *Map) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Configuration returns a copy of the collected parameters.
func (m *Map) Configuration() map[string]string {
	return maps.Clone(m.values)
}

// Properties collects the parameters of its section in input order.
type Properties struct {
	section string
	props   *properties.Properties
}

// NewProperties creates a Properties handler bound to section. Values are
// stored as given; ${...} references were already resolved by the scanner.
func NewProperties(section string) *Properties {
	p := properties.NewProperties()
	p.DisableExpansion = true
	return &Properties{section: section, props: p}
}

// Section returns the section the handler is bound to.
func (p *Properties) Section() string { return p.section }

// SectionStarted accepts every section.
func (p *Properties) SectionStarted(string) (bool, error) { return true, nil }

// Parameter stores the value, replacing an earlier one in place.
func (p *Properties) Parameter(section, key, value string) error {
	prev, replaced, err := p.props.Set(key, value)
	if err != nil {
		return conferr.Wrap(conferr.KindCoercion, err, "section %q: cannot store parameter %q", section, key)
	}
	if replaced {
		slog.Debug("Parameter redefined.", "section", section, "key", key, "previous", prev)
	}
	return nil
}

// SectionComplete does nothing.
func (p *Properties) SectionComplete(string) error { return nil }

// Configuration returns the collected parameters.
func (p *Properties) Configuration() *properties.Properties {
	return p.props
}
