package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vk/sectionconf/internal/conferr"
	"github.com/vk/sectionconf/internal/config"
	"github.com/vk/sectionconf/internal/ctxlog"
	"github.com/vk/sectionconf/internal/props"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Settings are the global flags shared by every command.
type Settings struct {
	LogLevel       string
	LogFormat      string
	PropertiesFile string
	Defines        map[string]string
	EnvPrefix      string
	DefaultSection string
}

// validate checks the flag values that cobra cannot check itself.
func (s *Settings) validate() error {
	s.LogFormat = strings.ToLower(s.LogFormat)
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	s.LogLevel = strings.ToLower(s.LogLevel)
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	return nil
}

// options translates the settings into loader options.
func (s *Settings) options() (config.Options, error) {
	opts := config.Options{
		Overrides:      s.Defines,
		EnvPrefix:      s.EnvPrefix,
		DefaultSection: s.DefaultSection,
	}
	if s.PropertiesFile != "" {
		src, err := props.LoadFile(s.PropertiesFile)
		if err != nil {
			return opts, &ExitError{Code: 2, Message: "failed to read properties file: " + err.Error()}
		}
		prefix := s.EnvPrefix
		if prefix == "" {
			prefix = props.DefaultEnvPrefix
		}
		opts.Sources = []props.Source{src, props.Process(), props.Environment(prefix)}
	}
	return opts, nil
}

// NewRootCommand builds the sectionconf command tree. Results go to outW,
// logs to logW.
func NewRootCommand(outW, logW io.Writer) *cobra.Command {
	s := &Settings{}

	root := &cobra.Command{
		Use:   "sectionconf",
		Short: "Inspect and validate sectioned configuration files",
		Long: `sectionconf reads configuration files made of [sections] of key = value
parameters, expands their Include and Variables directives, resolves
${...} references and reports what a program loading them would see.`,
		Example: `  # Print the flattened, interpolated parameters
  sectionconf dump app.conf

  # Resolve ${...} against extra properties
  sectionconf dump app.conf -D env=prod --properties defaults.yaml

  # Fail on parameters outside the sections the program reads
  sectionconf check app.conf --known mappings,object --strict`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.validate(); err != nil {
				return err
			}
			logger := ctxlog.New(s.LogLevel, s.LogFormat, logW)
			cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
			logger.Debug("Logger configured successfully.")
			return nil
		},
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Message: err.Error()}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&s.LogLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.StringVar(&s.LogFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flags.StringVarP(&s.PropertiesFile, "properties", "P", "", "YAML, TOML or JSON file of extra properties for ${...} references.")
	flags.StringToStringVarP(&s.Defines, "define", "D", nil, "Property override as key=value; may be repeated.")
	flags.StringVar(&s.EnvPrefix, "env-prefix", props.DefaultEnvPrefix, "Prefix under which environment variables are visible.")
	flags.StringVar(&s.DefaultSection, "default-section", "", "Name of the section before the first header.")

	root.AddCommand(newDumpCommand(s), newSectionsCommand(s), newCheckCommand(s))
	return root
}

// Run executes the command line args and maps failures to exit codes:
// 1 for configuration errors, 2 for usage errors.
func Run(ctx context.Context, outW, logW io.Writer, args []string) error {
	root := NewRootCommand(outW, logW)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	if _, ok := conferr.KindOf(err); ok {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	return &ExitError{Code: 2, Message: err.Error()}
}
