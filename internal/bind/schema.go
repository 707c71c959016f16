package bind

import (
	"fmt"

	"github.com/vk/sectionconf/internal/conferr"
)

// Schema is the mapping table between the parameters of a section and a
// target of type T: at most one constructor group, single-value members,
// and an optional sink for parameters nothing else claimed.
//
// Mistakes in the table are collected as the schema is built and reported
// by Build, so a bad mapping fails before any input is parsed.
type Schema[T any] struct {
	typeName string
	section  string

	hasCtor   bool
	ctorNames []string
	ctorKinds []Kind
	ctor      func(Args) (T, error)
	zero      func() T

	members map[string]Setter[T]
	order   []string

	unmatched          func(T, map[string]string)
	unmatchedInherited bool

	errs []error
}

// NewSchema starts a schema for targets of type T bound to section.
func NewSchema[T any](section string) *Schema[T] {
	var zero T
	return &Schema[T]{
		typeName: fmt.Sprintf("%T", zero),
		section:  section,
		members:  map[string]Setter[T]{},
	}
}

// New starts a schema for *V whose zero-argument constructor is new(V).
func New[V any](section string) *Schema[*V] {
	return NewSchema[*V](section).Zero(func() *V { return new(V) })
}

// Named overrides the type name used in error messages.
func (s *Schema[T]) Named(typeName string) *Schema[T] {
	s.typeName = typeName
	return s
}

// Section returns the section name the schema is bound to.
func (s *Schema[T]) Section() string {
	return s.section
}

// TypeName returns the name used for T in error messages.
func (s *Schema[T]) TypeName() string {
	return s.typeName
}

// Constructor declares the constructor group: the parameter names feeding
// fn's arguments in order, and their kinds. A schema takes one group only.
func (s *Schema[T]) Constructor(names []string, kinds []Kind, fn func(Args) (T, error)) *Schema[T] {
	switch {
	case s.hasCtor:
		s.fail("%s declares more than one constructor mapping", s.typeName)
		return s
	case len(names) != len(kinds):
		s.fail("constructor mapping of %s names %d parameters for %d arguments", s.typeName, len(names), len(kinds))
		return s
	case fn == nil:
		s.fail("constructor mapping of %s has no constructor", s.typeName)
		return s
	}

	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			s.fail("constructor mapping of %s names parameter %q twice", s.typeName, n)
			return s
		}
		seen[n] = true
	}

	s.hasCtor = true
	s.ctorNames = append([]string(nil), names...)
	s.ctorKinds = append([]Kind(nil), kinds...)
	s.ctor = fn
	return s
}

// Zero declares the zero-argument constructor used when no constructor
// group exists.
func (s *Schema[T]) Zero(fn func() T) *Schema[T] {
	s.zero = fn
	return s
}

// Member maps parameter name to a setter. Mapping one name twice is an
// error, except that it replaces a mapping inherited through Extend.
func (s *Schema[T]) Member(name string, set Setter[T]) *Schema[T] {
	if set.apply == nil {
		s.fail("member %q of %s has no setter", name, s.typeName)
		return s
	}
	if existing, ok := s.members[name]; ok {
		if !existing.inherited {
			s.fail("parameter %q is mapped twice on %s", name, s.typeName)
			return s
		}
	} else {
		s.order = append(s.order, name)
	}
	set.inherited = false
	s.members[name] = set
	return s
}

// Unmatched declares the sink that receives, as one name to value map,
// every parameter matched by neither the constructor nor a member.
func (s *Schema[T]) Unmatched(fn func(T, map[string]string)) *Schema[T] {
	if s.unmatched != nil && !s.unmatchedInherited {
		s.fail("%s declares more than one unmatched-parameter sink", s.typeName)
		return s
	}
	s.unmatched = fn
	s.unmatchedInherited = false
	return s
}

// Extend inherits the members and unmatched sink of parent, reached from a
// T through project. Names already mapped on s are kept; a name reached
// through several parents keeps its first mapping.
func Extend[T, P any](s *Schema[T], project func(T) P, parent *Schema[P]) *Schema[T] {
	s.errs = append(s.errs, parent.errs...)

	for _, name := range parent.order {
		if _, ok := s.members[name]; ok {
			continue
		}
		ps := parent.members[name]
		s.members[name] = Setter[T]{
			kind:      ps.kind,
			apply:     func(t T, v any) { ps.apply(project(t), v) },
			check:     ps.check,
			inherited: true,
		}
		s.order = append(s.order, name)
	}

	if s.unmatched == nil && parent.unmatched != nil {
		sink := parent.unmatched
		s.unmatched = func(t T, bag map[string]string) { sink(project(t), bag) }
		s.unmatchedInherited = true
	}
	return s
}

// Build reports every mistake recorded while the schema was declared.
func (s *Schema[T]) Build() error {
	return conferr.Aggregate(conferr.KindWiring, s.errs, "invalid configuration mapping for %s", s.typeName)
}

// kinds returns every kind the schema needs a coercion for.
func (s *Schema[T]) kinds() []Kind {
	out := append([]Kind(nil), s.ctorKinds...)
	for _, name := range s.order {
		out = append(out, s.members[name].kind)
	}
	return out
}

func (s *Schema[T]) canConstruct() bool {
	return s.hasCtor || s.zero != nil
}

func (s *Schema[T]) ctorIndex(name string) int {
	for i, n := range s.ctorNames {
		if n == name {
			return i
		}
	}
	return -1
}

func (s *Schema[T]) fail(format string, args ...any) {
	s.errs = append(s.errs, fmt.Errorf(format, args...))
}
