package bind

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/vk/sectionconf/internal/conferr"
)

// State is the lifecycle position of a Handler.
type State int

const (
	StateIdle State = iota
	StateStarted
	StateAccumulating
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarted:
		return "started"
	case StateAccumulating:
		return "accumulating"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type settings struct {
	coercions Coercions
	strict    bool
}

// Option configures a Handler.
type Option func(*settings)

// WithStrict makes parameters that nothing consumed an error when the
// schema has no unmatched-parameter sink. By default they are dropped.
func WithStrict() Option {
	return func(s *settings) { s.strict = true }
}

// WithCoercion adds or replaces the coercer of one kind.
func WithCoercion(kind Kind, c Coercer) Option {
	return func(s *settings) { s.coercions[kind] = c }
}

// WithCoercions replaces the whole coercion table.
func WithCoercions(table Coercions) Option {
	return func(s *settings) { s.coercions = maps.Clone(table) }
}

// Handler populates a T from the parameters of its section. Parameters are
// buffered as raw strings and applied when the section completes. A section
// that appears again later merges into the same buffer; the last value of a
// repeated key wins.
type Handler[T any] struct {
	schema   *Schema[T]
	settings settings

	instance  T
	hasTarget bool
	state     State
	params    map[string]string
	unmatched map[string]string
}

// NewHandler creates a handler that constructs its target through the
// schema's constructor group or zero-argument constructor.
func NewHandler[T any](schema *Schema[T], opts ...Option) (*Handler[T], error) {
	h, err := newHandler(schema, opts)
	if err != nil {
		return nil, err
	}
	if !schema.canConstruct() {
		return nil, conferr.New(conferr.KindWiring, "%s has neither a constructor mapping nor a zero-argument constructor", schema.typeName)
	}
	return h, nil
}

// NewHandlerFor creates a handler that applies members to an existing
// instance instead of constructing one.
func NewHandlerFor[T any](schema *Schema[T], instance T, opts ...Option) (*Handler[T], error) {
	h, err := newHandler(schema, opts)
	if err != nil {
		return nil, err
	}
	h.instance = instance
	h.hasTarget = true
	return h, nil
}

// MustHandler is NewHandler for static wiring; it panics on error.
func MustHandler[T any](schema *Schema[T], opts ...Option) *Handler[T] {
	h, err := NewHandler(schema, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

func newHandler[T any](schema *Schema[T], opts []Option) (*Handler[T], error) {
	if err := schema.Build(); err != nil {
		return nil, err
	}

	st := settings{coercions: DefaultCoercions()}
	for _, opt := range opts {
		opt(&st)
	}

	for _, k := range schema.kinds() {
		if _, ok := st.coercions[k]; !ok {
			return nil, conferr.New(conferr.KindWiring, "no coercion registered for %s, required by %s", k, schema.typeName)
		}
	}

	return &Handler[T]{
		schema:   schema,
		settings: st,
		params:   map[string]string{},
	}, nil
}

// Section returns the section name declared by the schema.
func (h *Handler[T]) Section() string {
	return h.schema.section
}

// State returns the lifecycle position of the handler.
func (h *Handler[T]) State() State {
	return h.state
}

// SectionStarted accepts every section the handler is registered for.
func (h *Handler[T]) SectionStarted(name string) (bool, error) {
	h.state = StateStarted
	return true, nil
}

// Parameter buffers one raw value.
func (h *Handler[T]) Parameter(section, key, value string) error {
	h.params[key] = value
	h.state = StateAccumulating
	return nil
}

// SectionComplete coerces the buffered parameters and populates the
// target. All coercion failures of the section are reported together, and
// nothing is constructed or assigned when any occurred.
func (h *Handler[T]) SectionComplete(name string) error {
	s := h.schema

	ctorValues := make([]any, len(s.ctorNames))
	ctorSet := make([]bool, len(s.ctorNames))
	memberValues := map[string]any{}
	unmatched := map[string]string{}
	var errs []error

	for _, key := range slices.Sorted(maps.Keys(h.params)) {
		raw := h.params[key]
		var kind Kind
		idx := s.ctorIndex(key)
		switch {
		case idx >= 0:
			kind = s.ctorKinds[idx]
		case hasMember(s, key):
			kind = s.members[key].kind
		default:
			unmatched[key] = raw
			continue
		}

		v, err := h.settings.coercions[kind](raw)
		if err == nil {
			if idx >= 0 {
				err = conforms(kind, v)
			} else if check := s.members[key].check; check != nil {
				err = check(v)
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s (%s): %w", key, kind, err))
			continue
		}
		if idx >= 0 {
			ctorValues[idx], ctorSet[idx] = v, true
		} else {
			memberValues[key] = v
		}
	}

	if err := conferr.Aggregate(conferr.KindCoercion, errs, "section %q: %d parameter(s) of %s could not be converted", name, len(errs), s.typeName); err != nil {
		return err
	}

	if !h.hasTarget {
		inst, err := h.construct(ctorValues, ctorSet)
		if err != nil {
			return err
		}
		h.instance, h.hasTarget = inst, true
	}

	for _, member := range s.order {
		if v, ok := memberValues[member]; ok {
			s.members[member].apply(h.instance, v)
		}
	}

	h.unmatched = unmatched
	if len(unmatched) > 0 {
		switch {
		case s.unmatched != nil:
			s.unmatched(h.instance, maps.Clone(unmatched))
		case h.settings.strict:
			return conferr.New(conferr.KindUnmatched, "section %q: parameters %q match nothing on %s", name, slices.Sorted(maps.Keys(unmatched)), s.typeName)
		default:
			slog.Debug("Dropping unmatched parameters.", "section", name, "type", s.typeName, "parameters", slices.Sorted(maps.Keys(unmatched)))
		}
	}

	h.state = StateCompleted
	return nil
}

func (h *Handler[T]) construct(values []any, set []bool) (T, error) {
	s := h.schema
	var zero T

	switch {
	case s.hasCtor:
		for i, ok := range set {
			if !ok {
				values[i] = zeroOf(s.ctorKinds[i])
			}
		}
		inst, err := s.ctor(Args{names: s.ctorNames, values: values, set: set})
		if err != nil {
			return zero, conferr.Wrap(conferr.KindCoercion, err, "constructor of %s rejected section %q", s.typeName, s.section)
		}
		return inst, nil
	case s.zero != nil:
		return s.zero(), nil
	default:
		return zero, conferr.New(conferr.KindWiring, "%s has neither a constructor mapping nor a zero-argument constructor", s.typeName)
	}
}

// Configuration returns the populated target, or the zero T before the
// section has completed.
func (h *Handler[T]) Configuration() T {
	if h.state != StateCompleted {
		var zero T
		return zero
	}
	return h.instance
}

// UnmatchedParameters returns the parameters the last completion could not
// map.
func (h *Handler[T]) UnmatchedParameters() map[string]string {
	return maps.Clone(h.unmatched)
}

func hasMember[T any](s *Schema[T], name string) bool {
	_, ok := s.members[name]
	return ok
}
