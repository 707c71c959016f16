// Package config wires the configuration pipeline together: a file is
// flattened by the include resolver, tokenized by the scanner with ${...}
// references resolved against the ambient properties, and dispatched to the
// handlers of a registry.
//
// Every call to Load starts from scratch. Variables loaded by one parse are
// not visible to the next, and nothing is cached between calls.
package config
