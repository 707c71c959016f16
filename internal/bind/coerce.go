package bind

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Kind names the target type of a mapped slot and selects its coercion.
type Kind int

// Required kinds. Applications may define their own kinds above
// KindCustom and supply coercions for them with WithCoercion.
const (
	KindString Kind = iota
	KindInt
	KindLong
	KindShort
	KindFloat
	KindDouble
	KindBool
	KindPath
	KindDuration

	KindCustom Kind = 100
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindLong:
		return "int64"
	case KindShort:
		return "int16"
	case KindFloat:
		return "float32"
	case KindDouble:
		return "float64"
	case KindBool:
		return "bool"
	case KindPath:
		return "path"
	case KindDuration:
		return "duration"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Coercer converts a raw parameter value into the Go value of a kind.
type Coercer func(raw string) (any, error)

// Coercions maps each kind to its coercer.
type Coercions map[Kind]Coercer

// DefaultCoercions returns a fresh table holding every required kind.
func DefaultCoercions() Coercions {
	return Coercions{
		KindString:   func(raw string) (any, error) { return raw, nil },
		KindInt:      parseInt,
		KindLong:     parseLong,
		KindShort:    parseShort,
		KindFloat:    floatInto[float32],
		KindDouble:   floatInto[float64],
		KindBool:     parseBool,
		KindPath:     parsePath,
		KindDuration: parseDuration,
	}
}

var integerLiteral = regexp.MustCompile(`^-?[0-9]+$`)

// integerInto parses raw as a decimal integer literal and narrows it to N,
// rejecting values outside N's range.
func integerInto[N int16 | int32 | int64](raw string) (N, error) {
	if !integerLiteral.MatchString(raw) {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	var out N
	if err := decodeNumber(raw, &out); err != nil {
		return 0, err
	}
	return out, nil
}

// parseInt coerces to int within the 32-bit range, so integer and long
// stay distinct on every platform.
func parseInt(raw string) (any, error) {
	v, err := integerInto[int32](raw)
	if err != nil {
		return nil, err
	}
	return int(v), nil
}

func parseLong(raw string) (any, error) {
	v, err := integerInto[int64](raw)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func parseShort(raw string) (any, error) {
	v, err := integerInto[int16](raw)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// floatInto parses raw as a decimal number and converts it to N.
func floatInto[N float32 | float64](raw string) (any, error) {
	var out N
	if err := decodeNumber(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeNumber(raw string, out any) error {
	num, err := convert.Convert(cty.StringVal(raw), cty.Number)
	if err != nil {
		return fmt.Errorf("%q is not a number", raw)
	}
	if err := gocty.FromCtyValue(num, out); err != nil {
		return fmt.Errorf("%q does not fit: %w", raw, err)
	}
	return nil
}

func parseBool(raw string) (any, error) {
	b, err := convert.Convert(cty.StringVal(strings.ToLower(raw)), cty.Bool)
	if err != nil {
		return nil, fmt.Errorf("%q is not a bool", raw)
	}
	return b.True(), nil
}

func parsePath(raw string) (any, error) {
	if raw == "" {
		return "", nil
	}
	return filepath.Clean(filepath.FromSlash(raw)), nil
}

func parseDuration(raw string) (any, error) {
	d, err := cast.ToDurationE(raw)
	if err != nil {
		return nil, fmt.Errorf("%q is not a duration", raw)
	}
	return d, nil
}

// conforms reports an error when v is not the Go type of a built-in kind.
// Custom kinds are not checked here.
func conforms(k Kind, v any) error {
	var ok bool
	switch k {
	case KindString, KindPath:
		_, ok = v.(string)
	case KindInt:
		_, ok = v.(int)
	case KindLong:
		_, ok = v.(int64)
	case KindShort:
		_, ok = v.(int16)
	case KindFloat:
		_, ok = v.(float32)
	case KindDouble:
		_, ok = v.(float64)
	case KindBool:
		_, ok = v.(bool)
	case KindDuration:
		_, ok = v.(time.Duration)
	default:
		ok = true
	}
	if !ok {
		return fmt.Errorf("coercion for %s produced %T, want %T", k, v, zeroOf(k))
	}
	return nil
}

// zeroOf is the value a constructor argument takes when its parameter is
// absent from the section.
func zeroOf(k Kind) any {
	switch k {
	case KindString, KindPath:
		return ""
	case KindInt:
		return 0
	case KindLong:
		return int64(0)
	case KindShort:
		return int16(0)
	case KindFloat:
		return float32(0)
	case KindDouble:
		return float64(0)
	case KindBool:
		return false
	case KindDuration:
		return time.Duration(0)
	default:
		return nil
	}
}
