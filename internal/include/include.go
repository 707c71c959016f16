// Package include flattens a configuration file and everything it pulls in
// through "Include <glob>" and "Variables <glob>" directives into one
// ordered line sequence.
//
// Include directives are honored at any depth; the matched files are
// expanded in place, depth first, in match order. Variables directives are
// honored in the outermost file only: every matched file is loaded as a
// property file (or TOML, by extension) into the resolver's property set, and the directive line
// itself is consumed. Relative globs resolve against the directory of the
// file that contains the directive.
package include

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/magiconair/properties"
	"github.com/spf13/afero"
	"github.com/vk/sectionconf/internal/conferr"
	"github.com/vk/sectionconf/internal/ctxlog"
	"github.com/vk/sectionconf/internal/fsutil"
	"github.com/vk/sectionconf/internal/props"
)

const (
	// IncludeDirective prefixes a line whose remainder is a glob of files
	// to splice in.
	IncludeDirective = "Include "
	// VariablesDirective prefixes a line whose remainder is a glob of
	// property files to load.
	VariablesDirective = "Variables "
)

const maxLineSize = 16 * 1024 * 1024

// Line is one line of flattened input and where it came from.
type Line struct {
	Text   string
	File   string
	Number int
}

// Resolver expands directives in configuration files.
type Resolver struct {
	fs   afero.Fs
	vars *props.Set
}

// NewResolver creates a Resolver reading from fsys and loading Variables
// files into vars. A nil vars discards loaded variables.
func NewResolver(fsys afero.Fs, vars *props.Set) *Resolver {
	if vars == nil {
		vars = props.NewSet()
	}
	return &Resolver{fs: fsys, vars: vars}
}

// Variables returns the property set that Variables files are loaded into.
func (r *Resolver) Variables() *props.Set {
	return r.vars
}

// Expand returns the flattened lines of file.
func (r *Resolver) Expand(ctx context.Context, file string) ([]Line, error) {
	return r.expandFile(ctx, file, false, nil)
}

// ExpandString returns the flattened content of file joined by newlines.
func (r *Resolver) ExpandString(ctx context.Context, file string) (string, error) {
	lines, err := r.Expand(ctx, file)
	if err != nil {
		return "", err
	}
	return Join(lines), nil
}

// ExpandReader flattens top-level input that does not live in a file.
// Includes and Variables inside it resolve against baseDir; name is only
// used for diagnostics.
func (r *Resolver) ExpandReader(ctx context.Context, rd io.Reader, name, baseDir string) ([]Line, error) {
	raw, err := readLines(rd, name)
	if err != nil {
		return nil, err
	}
	return r.expandLines(ctx, raw, name, baseDir, false, nil)
}

// Join concatenates line texts with newlines.
func Join(lines []Line) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

func (r *Resolver) expandFile(ctx context.Context, file string, ignoreVariables bool, stack []string) ([]Line, error) {
	clean := filepath.Clean(file)
	for _, open := range stack {
		if open == clean {
			return nil, conferr.New(conferr.KindIO, "include cycle: %s includes itself via %s", clean, strings.Join(stack, " -> "))
		}
	}

	f, err := r.fs.Open(clean)
	if err != nil {
		return nil, conferr.Wrap(conferr.KindIO, err, "failed to open configuration file %s", clean)
	}
	defer f.Close()

	raw, err := readLines(f, clean)
	if err != nil {
		return nil, err
	}

	return r.expandLines(ctx, raw, clean, filepath.Dir(clean), ignoreVariables, append(stack, clean))
}

func (r *Resolver) expandLines(ctx context.Context, raw []Line, name, baseDir string, ignoreVariables bool, stack []string) ([]Line, error) {
	logger := ctxlog.FromContext(ctx)

	out := make([]Line, 0, len(raw))
	for _, line := range raw {
		switch {
		case !ignoreVariables && strings.HasPrefix(line.Text, VariablesDirective):
			glob := strings.TrimSpace(strings.TrimPrefix(line.Text, VariablesDirective))
			if err := r.loadVariables(ctx, baseDir, glob); err != nil {
				return nil, err
			}

		case strings.HasPrefix(line.Text, IncludeDirective):
			glob := strings.TrimSpace(strings.TrimPrefix(line.Text, IncludeDirective))
			matches, err := fsutil.Match(r.fs, baseDir, glob)
			if err != nil {
				return nil, err
			}
			logger.Debug("Expanding include directive.", "file", name, "line", line.Number, "glob", glob, "matches", len(matches))

			for _, m := range matches {
				nested, err := r.expandFile(ctx, m, true, stack)
				if err != nil {
					return nil, err
				}
				out = append(out, nested...)
			}

		default:
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *Resolver) loadVariables(ctx context.Context, baseDir, glob string) error {
	logger := ctxlog.FromContext(ctx)

	matches, err := fsutil.Match(r.fs, baseDir, glob)
	if err != nil {
		return err
	}

	for _, m := range matches {
		buf, err := afero.ReadFile(r.fs, m)
		if err != nil {
			return conferr.Wrap(conferr.KindIO, err, "failed to read variables file %s", m)
		}
		vars, err := parseVariables(m, buf)
		if err != nil {
			return conferr.Wrap(conferr.KindIO, err, "failed to parse variables file %s", m)
		}
		r.vars.Merge(vars)
		logger.Debug("Loaded variables file.", "file", m, "properties", len(vars))
	}
	return nil
}

// parseVariables decodes a variables file. Files ending in .toml are TOML
// with nested tables flattened to dotted keys; everything else uses the
// property file syntax.
func parseVariables(name string, buf []byte) (map[string]string, error) {
	if strings.EqualFold(filepath.Ext(name), ".toml") {
		var doc map[string]any
		if err := toml.Unmarshal(buf, &doc); err != nil {
			return nil, err
		}
		out := map[string]string{}
		flatten(out, "", doc)
		return out, nil
	}

	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(buf)
	if err != nil {
		return nil, err
	}
	return p.Map(), nil
}

func flatten(out map[string]string, prefix string, table map[string]any) {
	for k, v := range table {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case map[string]any:
			flatten(out, key, v)
		case []any:
			items := make([]string, len(v))
			for i, item := range v {
				items[i] = fmt.Sprint(item)
			}
			out[key] = strings.Join(items, ",")
		default:
			out[key] = fmt.Sprint(v)
		}
	}
}

func readLines(rd io.Reader, name string) ([]Line, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []Line
	for n := 1; sc.Scan(); n++ {
		lines = append(lines, Line{Text: sc.Text(), File: name, Number: n})
	}
	if err := sc.Err(); err != nil {
		return nil, conferr.Wrap(conferr.KindIO, err, "failed to read %s", name)
	}
	return lines, nil
}
