package config

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/vk/sectionconf/internal/conferr"
	"github.com/vk/sectionconf/internal/ctxlog"
	"github.com/vk/sectionconf/internal/include"
	"github.com/vk/sectionconf/internal/interp"
	"github.com/vk/sectionconf/internal/props"
	"github.com/vk/sectionconf/internal/registry"
	"github.com/vk/sectionconf/internal/scanner"
)

// Loader runs the configuration pipeline.
type Loader struct {
	opts *Options
}

// NewLoader creates a Loader.
func NewLoader(opts Options) (*Loader, error) {
	o, err := NewOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Loader{opts: o}, nil
}

// Load parses the file at path into the handlers of reg.
func (l *Loader) Load(ctx context.Context, path string, reg *registry.Registry) error {
	return l.run(ctx, reg, path, func(r *include.Resolver) ([]include.Line, error) {
		return r.Expand(ctx, path)
	})
}

// LoadString parses text as if it were the file name. Includes resolve
// against the directory of name.
func (l *Loader) LoadString(ctx context.Context, name, text string, reg *registry.Registry) error {
	return l.LoadReader(ctx, strings.NewReader(text), name, reg)
}

// LoadReader parses rd as if it were the file name.
func (l *Loader) LoadReader(ctx context.Context, rd io.Reader, name string, reg *registry.Registry) error {
	return l.run(ctx, reg, name, func(r *include.Resolver) ([]include.Line, error) {
		return r.ExpandReader(ctx, rd, name, filepath.Dir(name))
	})
}

func (l *Loader) run(ctx context.Context, reg *registry.Registry, name string, expand func(*include.Resolver) ([]include.Line, error)) error {
	logger := ctxlog.FromContext(ctx)

	vars := props.NewSet()
	lines, err := expand(include.NewResolver(l.opts.Fs, vars))
	if err != nil {
		return err
	}
	logger.Debug("Configuration flattened.", "file", name, "lines", len(lines), "variables", vars.Len())

	sc := &scanner.Scanner{
		DefaultSection: l.opts.DefaultSection,
		Interpolator:   interp.New(l.opts.source(vars)),
	}

	var listener scanner.Listener = reg.Dispatcher()
	if l.opts.Strict {
		listener = &strictListener{next: listener, reg: reg}
	}

	if err := sc.Scan(ctx, lines, listener); err != nil {
		return err
	}
	logger.Debug("Configuration loaded.", "file", name, "sections", reg.Sections())
	return nil
}

// strictListener rejects parameters of sections that no handler owns and
// no observer watches. Sections a handler explicitly declined stay silent.
type strictListener struct {
	next    scanner.Listener
	reg     *registry.Registry
	deliver bool
	owned   bool
}

func (s *strictListener) SectionStarted(name string) (bool, error) {
	deliver, err := s.next.SectionStarted(name)
	if err != nil {
		return false, err
	}
	_, s.owned = s.reg.Handler(name)
	s.deliver = deliver
	return true, nil
}

func (s *strictListener) Parameter(section, key, value string) error {
	switch {
	case s.deliver:
		return s.next.Parameter(section, key, value)
	case s.owned:
		return nil
	default:
		return conferr.New(conferr.KindUnmatched, "parameter %q belongs to section %q, which no handler owns", key, section)
	}
}

func (s *strictListener) SectionComplete(name string) error {
	return s.next.SectionComplete(name)
}

func (s *strictListener) ParseComplete() error {
	return s.next.ParseComplete()
}
