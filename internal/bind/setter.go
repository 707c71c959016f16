package bind

import (
	"fmt"
	"time"
)

// Setter assigns one coerced value to a member of a T.
type Setter[T any] struct {
	kind      Kind
	apply     func(target T, value any)
	check     func(value any) error
	inherited bool
}

// Kind returns the kind the setter expects.
func (s Setter[T]) Kind() Kind {
	return s.kind
}

// Custom maps a member of an application-defined kind. The coercer for the
// kind must return a V; any other value fails the section with a coercion
// error before anything is assigned.
func Custom[T, V any](kind Kind, set func(T, V)) Setter[T] {
	return Setter[T]{
		kind:  kind,
		apply: func(t T, v any) { set(t, v.(V)) },
		check: func(v any) error {
			if _, ok := v.(V); !ok {
				var want V
				return fmt.Errorf("coercion for %s produced %T, want %T", kind, v, want)
			}
			return nil
		},
	}
}

// String maps a string member.
func String[T any](set func(T, string)) Setter[T] { return Custom(KindString, set) }

// Int maps an int member.
func Int[T any](set func(T, int)) Setter[T] { return Custom(KindInt, set) }

// Long maps an int64 member.
func Long[T any](set func(T, int64)) Setter[T] { return Custom(KindLong, set) }

// Short maps an int16 member.
func Short[T any](set func(T, int16)) Setter[T] { return Custom(KindShort, set) }

// Float maps a float32 member.
func Float[T any](set func(T, float32)) Setter[T] { return Custom(KindFloat, set) }

// Double maps a float64 member.
func Double[T any](set func(T, float64)) Setter[T] { return Custom(KindDouble, set) }

// Bool maps a bool member.
func Bool[T any](set func(T, bool)) Setter[T] { return Custom(KindBool, set) }

// Path maps a file path member; the value is cleaned.
func Path[T any](set func(T, string)) Setter[T] { return Custom(KindPath, set) }

// Duration maps a time.Duration member.
func Duration[T any](set func(T, time.Duration)) Setter[T] { return Custom(KindDuration, set) }

// Args are the coerced constructor arguments, in declaration order.
// Arguments whose parameter was absent hold the zero value of their kind.
type Args struct {
	names  []string
	values []any
	set    []bool
}

// Len returns the number of arguments.
func (a Args) Len() int { return len(a.values) }

// Name returns the parameter name of argument i.
func (a Args) Name(i int) string { return a.names[i] }

// IsSet reports whether argument i was present in the section.
func (a Args) IsSet(i int) bool { return a.set[i] }

// Value returns argument i untyped.
func (a Args) Value(i int) any { return a.values[i] }

// ArgAs returns argument i as a V, failing when it holds another type.
func ArgAs[V any](a Args, i int) (V, error) {
	v, ok := a.values[i].(V)
	if !ok {
		var want V
		return want, fmt.Errorf("argument %q holds %T, want %T", a.names[i], a.values[i], want)
	}
	return v, nil
}

// argAs backs the typed accessors. Values of the built-in kinds are checked
// against their Go type during coercion, so the assertion only misses when
// the accessor does not match the declared kind.
func argAs[V any](a Args, i int) V {
	v, _ := ArgAs[V](a, i)
	return v
}

// String returns argument i as a string.
func (a Args) String(i int) string { return argAs[string](a, i) }

// Int returns argument i as an int.
func (a Args) Int(i int) int { return argAs[int](a, i) }

// Long returns argument i as an int64.
func (a Args) Long(i int) int64 { return argAs[int64](a, i) }

// Short returns argument i as an int16.
func (a Args) Short(i int) int16 { return argAs[int16](a, i) }

// Float returns argument i as a float32.
func (a Args) Float(i int) float32 { return argAs[float32](a, i) }

// Double returns argument i as a float64.
func (a Args) Double(i int) float64 { return argAs[float64](a, i) }

// Bool returns argument i as a bool.
func (a Args) Bool(i int) bool { return argAs[bool](a, i) }

// Duration returns argument i as a time.Duration.
func (a Args) Duration(i int) time.Duration { return argAs[time.Duration](a, i) }
