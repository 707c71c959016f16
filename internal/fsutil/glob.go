package fsutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"github.com/vk/sectionconf/internal/conferr"
)

const globMeta = "*?"

// IsGlob reports whether pattern contains a glob metacharacter.
func IsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, globMeta)
}

// Match resolves pattern against baseDir.
//
// A pattern without metacharacters is a literal path and always yields
// exactly one candidate, whether or not it exists. Otherwise the literal
// directory prefix of the pattern selects the walk root, every entry below
// it is enumerated depth first, and entries whose root-relative path matches
// the translated suffix are returned in walk order. A trailing separator
// restricts results to directories. No match is not an error.
func Match(fsys afero.Fs, baseDir, pattern string) ([]string, error) {
	if !IsGlob(pattern) {
		if filepath.IsAbs(pattern) {
			return []string{pattern}, nil
		}
		return []string{filepath.Join(baseDir, pattern)}, nil
	}

	root, suffix := splitGlob(baseDir, pattern)
	dirsOnly := strings.HasSuffix(pattern, "/") || strings.HasSuffix(pattern, string(filepath.Separator))
	suffix = strings.TrimRight(filepath.ToSlash(suffix), "/")

	re, err := translateGlob(suffix)
	if err != nil {
		return nil, conferr.Wrap(conferr.KindIO, err, "invalid glob %q", pattern)
	}

	var matches []string
	err = afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if dirsOnly && !info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if re.MatchString(filepath.ToSlash(rel)) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, conferr.Wrap(conferr.KindIO, err, "failed to resolve glob %q under %s", pattern, root)
	}

	return matches, nil
}

// splitGlob separates the literal directory prefix from the glob suffix at
// the last separator preceding the first metacharacter.
func splitGlob(baseDir, pattern string) (string, string) {
	first := strings.IndexAny(pattern, globMeta)
	sep := strings.LastIndexAny(pattern[:first], `/`+string(filepath.Separator))
	if sep < 0 {
		return baseDir, pattern
	}

	prefix, suffix := pattern[:sep], pattern[sep+1:]
	switch {
	case prefix == "" && filepath.IsAbs(pattern):
		return string(filepath.Separator), suffix
	case filepath.IsAbs(prefix):
		return filepath.Clean(prefix), suffix
	default:
		return filepath.Join(baseDir, prefix), suffix
	}
}

// translateGlob turns a glob suffix into an anchored regular expression.
// "**" is one unit spanning separators, "*" stops at a separator and "?"
// is exactly one character.
func translateGlob(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString(".")
		case '.':
			b.WriteString(`\.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
