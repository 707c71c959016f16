package config

import (
	"strings"

	"github.com/spf13/afero"
	"github.com/vk/sectionconf/internal/conferr"
	"github.com/vk/sectionconf/internal/fsutil"
	"github.com/vk/sectionconf/internal/props"
)

// Options holds everything a Loader needs besides the input itself.
type Options struct {
	// Fs is the file system includes and Variables files are read from.
	// Defaults to the OS file system.
	Fs afero.Fs

	// Sources are the ambient property sources, consulted in order after
	// Overrides and Variables-loaded properties. Defaults to the process
	// properties followed by the environment under EnvPrefix.
	Sources []props.Source

	// Overrides take precedence over every other property.
	Overrides map[string]string

	// EnvPrefix is the key prefix of environment variables in the default
	// sources. Defaults to props.DefaultEnvPrefix.
	EnvPrefix string

	// DefaultSection names the section open before the first header.
	DefaultSection string

	// Strict makes a parameter of a section no handler owns an error.
	Strict bool
}

// NewOptions validates opts and fills in the defaults.
func NewOptions(opts Options) (*Options, error) {
	if strings.ContainsAny(opts.DefaultSection, "[]") {
		return nil, conferr.New(conferr.KindWiring, "default section %q cannot contain brackets", opts.DefaultSection)
	}
	for k := range opts.Overrides {
		if strings.TrimSpace(k) == "" {
			return nil, conferr.New(conferr.KindWiring, "property overrides cannot have an empty key")
		}
	}

	if opts.Fs == nil {
		opts.Fs = fsutil.OS()
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = props.DefaultEnvPrefix
	}
	if opts.Sources == nil {
		opts.Sources = []props.Source{props.Process(), props.Environment(opts.EnvPrefix)}
	}
	return &opts, nil
}

// source is the property lookup order of one parse.
func (o *Options) source(vars *props.Set) props.Source {
	chain := props.Chain{props.Map(o.Overrides), vars}
	return append(chain, o.Sources...)
}
