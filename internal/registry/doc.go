// Package registry routes parsed configuration events to the handlers that
// own each section.
//
// A Registry is long-lived: handlers, aliases and observers are registered
// before parsing, and populated configurations are retrieved from it
// afterwards, by section name or by type. Each parse drives its own
// Dispatcher, so independent parses and lookups may share one Registry.
//
// Ownership of a section is exclusive. Registering the same handler under
// the same name again is a no-op; registering a different handler under a
// taken name fails immediately, before any input is read.
package registry
