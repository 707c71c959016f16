package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/vk/sectionconf/internal/conferr"
	"github.com/vk/sectionconf/internal/config"
	"github.com/vk/sectionconf/internal/ctxlog"
	"github.com/vk/sectionconf/internal/fsutil"
	"github.com/vk/sectionconf/internal/handlers"
	"github.com/vk/sectionconf/internal/registry"
	"github.com/vk/sectionconf/internal/scanner"
)

// configExtension selects the files check validates in a directory.
const configExtension = ".conf"

func newDumpCommand(s *Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "dump FILE",
		Short: "Print every parameter after includes and interpolation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := record(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			writeDump(cmd.OutOrStdout(), rec.Parameters())
			return nil
		},
	}
}

func newSectionsCommand(s *Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "sections FILE",
		Short: "List the sections of a file with their parameter counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := record(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			writeSections(cmd.OutOrStdout(), rec.Events)
			return nil
		},
	}
}

func newCheckCommand(s *Settings) *cobra.Command {
	var known []string
	var strict bool

	cmd := &cobra.Command{
		Use:   "check FILE|DIR",
		Short: "Validate a file, or every " + configExtension + " file under a directory",
		Long: `check parses each file the way a program would and reports the first
error. With --known, only the listed sections are treated as owned;
--strict then rejects parameters of any other section.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := ctxlog.FromContext(ctx)

			opts, err := s.options()
			if err != nil {
				return err
			}
			opts.Strict = strict
			loader, err := config.NewLoader(opts)
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}

			files, err := targets(args[0])
			if err != nil {
				return err
			}
			logger.Debug("Checking configuration files.", "count", len(files))

			for _, f := range files {
				reg := registry.New()
				if len(known) == 0 {
					reg.Observe(&scanner.Recorder{})
				}
				for _, name := range known {
					if err := reg.RegisterBound(handlers.NewMap(name)); err != nil {
						return err
					}
				}
				if err := loader.Load(ctx, f, reg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", f)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&known, "known", nil, "Sections the program reads; others are unowned.")
	cmd.Flags().BoolVar(&strict, "strict", false, "Reject parameters of unowned sections.")
	return cmd
}

// record loads path with an observer that records every event.
func record(ctx context.Context, s *Settings, path string) (*scanner.Recorder, error) {
	opts, err := s.options()
	if err != nil {
		return nil, err
	}
	loader, err := config.NewLoader(opts)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}

	reg := registry.New()
	rec := &scanner.Recorder{}
	reg.Observe(rec)
	if err := loader.Load(ctx, path, reg); err != nil {
		return nil, err
	}
	return rec, nil
}

// targets expands a directory argument into its configuration files.
func targets(path string) ([]string, error) {
	fs := fsutil.OS()
	isDir, err := afero.IsDir(fs, path)
	if err != nil || !isDir {
		return []string{path}, nil
	}
	files, err := fsutil.FindFilesByExtension(fs, path, configExtension)
	if err != nil {
		return nil, conferr.Wrap(conferr.KindIO, err, "failed to list %s", path)
	}
	if len(files) == 0 {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("no %s files found in %s", configExtension, path)}
	}
	return files, nil
}

// writeDump prints parameters grouped under their section headers.
func writeDump(w io.Writer, params []scanner.Event) {
	current := ""
	for i, p := range params {
		if i == 0 || p.Section != current {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "[%s]\n", p.Section)
			current = p.Section
		}
		fmt.Fprintf(w, "%s = %s\n", p.Key, p.Value)
	}
}

// writeSections prints one line per section occurrence with its
// parameter count, in input order.
func writeSections(w io.Writer, events []scanner.Event) {
	count := 0
	for _, e := range events {
		switch e.Kind {
		case scanner.EventSectionStarted:
			count = 0
		case scanner.EventParameter:
			count++
		case scanner.EventSectionComplete:
			fmt.Fprintf(w, "%s\t%d\n", e.Section, count)
		}
	}
}
