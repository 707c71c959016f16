// Package fsutil provides the file system helpers of the include machinery:
// a restricted glob resolver and a recursive file finder, both working over
// an afero.Fs so the same code serves the OS and in-memory trees.
package fsutil

import (
	"os"
	"strings"

	"github.com/spf13/afero"
)

// OS returns the file system backed by the host OS.
func OS() afero.Fs {
	return afero.NewOsFs()
}

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. It returns a slice of their full paths.
func FindFilesByExtension(fsys afero.Fs, rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := afero.Walk(fsys, rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}
