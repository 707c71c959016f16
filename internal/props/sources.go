package props

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix is the key prefix under which environment variables are
// visible, as in ${env.HOME}.
const DefaultEnvPrefix = "env."

// Map is a fixed, caller-supplied source.
type Map map[string]string

// Lookup implements Source.
func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Chain consults its sources in order; the first source holding a key wins.
type Chain []Source

// Lookup implements Source.
func (c Chain) Lookup(key string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

type envSource struct {
	prefix string
}

// Environment exposes environment variables under prefix. An empty prefix
// exposes them by their bare names.
func Environment(prefix string) Source {
	return envSource{prefix: prefix}
}

func (e envSource) Lookup(key string) (string, bool) {
	if !strings.HasPrefix(key, e.prefix) {
		return "", false
	}
	return os.LookupEnv(strings.TrimPrefix(key, e.prefix))
}

// Process returns the process-wide defaults: user and working directories,
// platform names and separators.
func Process() Source {
	m := Map{
		"os.name":        runtime.GOOS,
		"os.arch":        runtime.GOARCH,
		"file.separator": string(filepath.Separator),
		"path.separator": string(filepath.ListSeparator),
		"line.separator": "\n",
	}
	if home, err := os.UserHomeDir(); err == nil {
		m["user.home"] = home
	}
	if wd, err := os.Getwd(); err == nil {
		m["user.dir"] = wd
	}
	if u, err := user.Current(); err == nil {
		m["user.name"] = u.Username
	}
	if tmp := os.TempDir(); tmp != "" {
		m["tmp.dir"] = tmp
	}
	return m
}

// Ambient is the default ambient source: process defaults, then environment
// variables under DefaultEnvPrefix.
func Ambient() Source {
	return Chain{Process(), Environment(DefaultEnvPrefix)}
}

type viperSource struct {
	v *viper.Viper
}

// Viper exposes the keys of a viper instance, such as one loaded from a
// YAML or TOML properties file. Nested keys are reached with dots.
func Viper(v *viper.Viper) Source {
	return viperSource{v: v}
}

func (s viperSource) Lookup(key string) (string, bool) {
	if s.v == nil || !s.v.IsSet(key) {
		return "", false
	}
	return s.v.GetString(key), true
}

// LoadFile reads a YAML, TOML or JSON file into a viper-backed Source. The
// format follows the file extension.
func LoadFile(path string) (Source, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return Viper(v), nil
}
