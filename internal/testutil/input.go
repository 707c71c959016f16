package testutil

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/vk/sectionconf/internal/include"
)

// Lines splits text into numbered lines attributed to file.
func Lines(file, text string) []include.Line {
	var lines []include.Line
	for i, t := range strings.Split(text, "\n") {
		lines = append(lines, include.Line{Text: t, File: file, Number: i + 1})
	}
	return lines
}

// WriteFiles creates every file of files, keyed by slash-separated path,
// on fs. Parent directories are created as needed.
func WriteFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.FromSlash(name)
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
}
