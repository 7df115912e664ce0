package indexing

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"codegraph/internal/core/config"
	"codegraph/internal/shared/util"
)

// Discovery walks the configured root and decides which files become part of
// the graph. All returned paths are root-relative with forward slashes; the
// graph never stores absolute paths.
type Discovery struct {
	root         string
	include      []glob.Glob
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	maxFileSize  int64
}

func NewDiscovery(cfg *config.Config) (*Discovery, error) {
	d := &Discovery{root: cfg.Root, maxFileSize: cfg.MaxFileSize}

	for _, p := range cfg.Include {
		g, err := glob.Compile(util.NormalizePatternPath(p), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", p, err)
		}
		d.include = append(d.include, g)
	}
	for _, p := range cfg.Exclude.Dirs {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude dir pattern %q: %w", p, err)
		}
		d.excludeDirs = append(d.excludeDirs, g)
	}
	for _, p := range cfg.Exclude.Files {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude file pattern %q: %w", p, err)
		}
		d.excludeFiles = append(d.excludeFiles, g)
	}
	return d, nil
}

func (d *Discovery) Root() string { return d.root }

// Files walks the root and returns the accepted file set, sorted.
func (d *Discovery) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if entry.IsDir() {
			if path != d.root && d.excludedDir(base) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(d.root, path)
		if relErr != nil {
			return relErr
		}
		rel = util.NormalizePatternPath(rel)

		info, infoErr := entry.Info()
		if infoErr != nil {
			return nil
		}
		if d.Accepts(rel, info.Size()) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Accepts applies the per-file filters to a root-relative path. Directory
// exclusion is checked against every path segment so the watcher can reuse
// this for events arriving outside a walk.
func (d *Discovery) Accepts(rel string, size int64) bool {
	if size > d.maxFileSize {
		return false
	}
	segments := strings.Split(rel, "/")
	for _, segment := range segments[:len(segments)-1] {
		if d.excludedDir(segment) {
			return false
		}
	}

	base := segments[len(segments)-1]
	for _, g := range d.excludeFiles {
		if g.Match(base) {
			return false
		}
	}

	for _, g := range d.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (d *Discovery) excludedDir(name string) bool {
	for _, g := range d.excludeDirs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

var generatedMarkers = [][]byte{
	[]byte("Code generated"),
	[]byte("DO NOT EDIT"),
	[]byte("@generated"),
	[]byte("AUTOGENERATED"),
	[]byte("auto-generated"),
}

// IsGeneratedFile checks the leading lines for a generated-code marker.
// Checked after reading so the real content decides, not the filename.
func IsGeneratedFile(content []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for line := 0; scanner.Scan() && line < 5; line++ {
		for _, marker := range generatedMarkers {
			if bytes.Contains(scanner.Bytes(), marker) {
				return true
			}
		}
	}
	return false
}

// GoModulePrefix reads the module path from go.mod at the root, if any.
// Indexers use it to recognize module-local Go import paths.
func GoModulePrefix(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
