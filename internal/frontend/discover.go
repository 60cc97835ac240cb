package frontend

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

var skipDirs = map[string]struct{}{
	"__pycache__":  {},
	"node_modules": {},
	"vendor":       {},
	"venv":         {},
	"build":        {},
	"dist":         {},
	"third_party":  {},
}

// Discover returns the files under root that reg can parse, as slash
// separated paths relative to root, sorted. Hidden entries, well-known
// build and dependency directories and paths matched by root/.gitignore
// are skipped.
func Discover(root string, reg *Registry) ([]string, error) {
	gi := loadGitignore(root)

	var results []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(relPath(root, path)+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		rel := relPath(root, path)
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if _, ok := reg.For(name); !ok {
			return nil
		}
		results = append(results, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(results)
	return results, nil
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// Load reads a discovered file.
func Load(root, rel string) (Source, error) {
	abs, err := filepath.Abs(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return Source{}, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return Source{}, err
	}
	return Source{Path: rel, AbsPath: abs, Content: content}, nil
}
