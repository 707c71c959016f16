// Package scanner turns flattened configuration lines into a stream of
// section and parameter events.
//
// The grammar is line oriented:
//
//	# comment
//	[section]
//	key = value          # trailing comment
//	key: value
//	long = first \
//	       second
//
// Parameters before the first header belong to DefaultSection. Values are
// trimmed, lose everything from the first unescaped '#', and are
// interpolated once their continuation lines have been collected.
package scanner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vk/sectionconf/internal/conferr"
	"github.com/vk/sectionconf/internal/ctxlog"
	"github.com/vk/sectionconf/internal/include"
)

// DefaultSection names the section that is open before any header.
const DefaultSection = "default"

var keyValuePattern = regexp.MustCompile(`^\s*([^#:=]+?)\s*[:=]\s*(.*)$`)

// Listener receives the event stream of one parse. SectionStarted reports
// whether the parameters of the section should be delivered at all.
type Listener interface {
	SectionStarted(name string) (bool, error)
	Parameter(section, key, value string) error
	SectionComplete(name string) error
	ParseComplete() error
}

// Interpolator resolves references in a raw value.
type Interpolator interface {
	Interpolate(raw string) (string, error)
}

// Scanner holds the settings of the tokenizer.
type Scanner struct {
	// DefaultSection overrides the name of the initial section.
	DefaultSection string
	Interpolator   Interpolator
}

// Scan feeds lines to l using a Scanner with default settings.
func Scan(ctx context.Context, lines []include.Line, in Interpolator, l Listener) error {
	s := &Scanner{Interpolator: in}
	return s.Scan(ctx, lines, l)
}

// pending is a parameter whose value continues on following lines.
type pending struct {
	key  string
	buf  strings.Builder
	line include.Line
}

// Scan feeds lines to l. The first error from the interpolator or the
// listener aborts the scan.
func (s *Scanner) Scan(ctx context.Context, lines []include.Line, l Listener) error {
	logger := ctxlog.FromContext(ctx)

	section := s.DefaultSection
	if section == "" {
		section = DefaultSection
	}

	process, err := l.SectionStarted(section)
	if err != nil {
		return err
	}

	var cont *pending
	for _, line := range lines {
		if cont != nil {
			if text, ok := strings.CutSuffix(line.Text, `\`); ok {
				cont.buf.WriteString(text)
				continue
			}
			cont.buf.WriteString(line.Text)
			if err := s.emit(l, section, process, cont.key, cont.buf.String(), cont.line); err != nil {
				return err
			}
			cont = nil
			continue
		}

		trimmed := strings.TrimSpace(line.Text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if name, ok := sectionHeader(trimmed); ok {
			if name == "" {
				continue
			}
			if err := l.SectionComplete(section); err != nil {
				return located(line, err)
			}
			section = name
			if process, err = l.SectionStarted(section); err != nil {
				return located(line, err)
			}
			if !process {
				logger.Debug("Section declined, skipping its parameters.", "section", section, "file", line.File, "line", line.Number)
			}
			continue
		}

		m := keyValuePattern.FindStringSubmatch(line.Text)
		key := ""
		if m != nil {
			key = strings.TrimSpace(m[1])
		}
		if key == "" {
			logger.Debug("Dropping line that is not a parameter.", "file", line.File, "line", line.Number, "text", line.Text)
			continue
		}

		value := strings.TrimSpace(stripComment(m[2]))
		if head, ok := strings.CutSuffix(value, `\`); ok {
			cont = &pending{key: key, line: line}
			cont.buf.WriteString(head)
			continue
		}

		if err := s.emit(l, section, process, key, value, line); err != nil {
			return err
		}
	}

	if cont != nil {
		if err := s.emit(l, section, process, cont.key, cont.buf.String(), cont.line); err != nil {
			return err
		}
	}

	if err := l.SectionComplete(section); err != nil {
		return err
	}
	return l.ParseComplete()
}

func (s *Scanner) emit(l Listener, section string, process bool, key, raw string, line include.Line) error {
	if !process {
		return nil
	}

	value := raw
	if s.Interpolator != nil {
		v, err := s.Interpolator.Interpolate(raw)
		if err != nil {
			return located(line, conferr.Wrap(conferr.KindInterpolation, err, "failed to interpolate parameter %q with value %q", key, raw))
		}
		value = v
	}

	if err := l.Parameter(section, key, strings.TrimSpace(value)); err != nil {
		return located(line, err)
	}
	return nil
}

// sectionHeader reports whether trimmed is a [name] header and returns the
// trimmed name, which is empty for "[]" and for brackets around blanks.
func sectionHeader(trimmed string) (string, bool) {
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return "", false
	}
	return strings.TrimSpace(trimmed[1 : len(trimmed)-1]), true
}

// stripComment cuts value at the first '#' not preceded by a backslash and
// turns every "\#" before it into "#".
func stripComment(value string) string {
	if !strings.Contains(value, "#") {
		return value
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '\\' && i+1 < len(value) && value[i+1] == '#' {
			b.WriteByte('#')
			i++
			continue
		}
		if c == '#' {
			break
		}
		b.WriteByte(c)
	}
	return b.String()
}

func located(line include.Line, err error) error {
	if line.File == "" {
		return err
	}
	return fmt.Errorf("%s:%d: %w", line.File, line.Number, err)
}
