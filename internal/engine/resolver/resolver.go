package resolver

import (
	"path"
	"sort"
	"strings"

	"codegraph/internal/engine/graph"
	"codegraph/internal/shared/util"
)

// probeExtensions are tried, in order, when a specifier omits its extension.
var probeExtensions = []string{
	".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".d.ts",
	".py", ".go", ".java", ".rs", ".css", ".html",
}

// indexBasenames are tried when a specifier points at a directory.
var indexBasenames = []string{
	"index.ts", "index.tsx", "index.js", "index.jsx", "__init__.py", "mod.rs",
}

// Resolution is the outcome of mapping one import specifier.
type Resolution struct {
	ID       string // canonical node identity
	Path     string // root-relative path when resolved to a file
	Resolved bool   // target file exists in the indexed set
	External bool   // bare package specifier, represented as a module placeholder
}

// Resolver maps module specifiers to canonical node identities. It is a pure
// function of its inputs plus the alias table and file-set snapshot it was
// constructed with; it performs no I/O.
type Resolver struct {
	aliases []aliasRule
	files   map[string]bool
}

type aliasRule struct {
	prefix string
	target string
}

// New builds a resolver over a snapshot of indexed file paths (root-relative,
// slash-separated) and a map of alias prefix -> physical directory.
func New(files []string, aliases map[string]string) *Resolver {
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[util.NormalizePatternPath(f)] = true
	}

	rules := make([]aliasRule, 0, len(aliases))
	for prefix, target := range aliases {
		rules = append(rules, aliasRule{
			prefix: strings.TrimSuffix(prefix, "/"),
			target: util.NormalizePatternPath(target),
		})
	}
	// Longest prefix wins; ties broken alphabetically for determinism.
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].prefix) != len(rules[j].prefix) {
			return len(rules[i].prefix) > len(rules[j].prefix)
		}
		return rules[i].prefix < rules[j].prefix
	})

	return &Resolver{aliases: rules, files: set}
}

// Resolve maps a specifier found in fromFile to a canonical node identity.
//
// Relative specifiers are resolved against the importing file's directory
// with extension and index-file probing. Alias-prefixed specifiers resolve
// through the configured alias table. Everything else is treated as an
// external package and mapped to a stable module placeholder.
func (r *Resolver) Resolve(specifier, fromFile string) Resolution {
	spec := strings.TrimSpace(specifier)
	if spec == "" {
		return Resolution{ID: graph.ModuleID("(empty)"), External: true}
	}

	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || spec == "." || spec == ".." {
		base := path.Dir(util.NormalizePatternPath(fromFile))
		candidate := util.NormalizePatternPath(path.Join(base, spec))
		return r.resolveFileTarget(candidate)
	}

	for _, rule := range r.aliases {
		if spec == rule.prefix || strings.HasPrefix(spec, rule.prefix+"/") {
			rest := strings.TrimPrefix(strings.TrimPrefix(spec, rule.prefix), "/")
			candidate := util.NormalizePatternPath(path.Join(rule.target, rest))
			return r.resolveFileTarget(candidate)
		}
	}

	return Resolution{ID: graph.ModuleID(packageRoot(spec)), External: true}
}

// resolveFileTarget probes candidate, candidate+ext, and candidate/index.*.
// When nothing exists the cleaned candidate path is still used as a stable
// identity so re-indexing diffs deterministically.
func (r *Resolver) resolveFileTarget(candidate string) Resolution {
	if r.files[candidate] {
		return Resolution{ID: graph.FileID(candidate), Path: candidate, Resolved: true}
	}
	for _, ext := range probeExtensions {
		probe := candidate + ext
		if r.files[probe] {
			return Resolution{ID: graph.FileID(probe), Path: probe, Resolved: true}
		}
	}
	for _, idx := range indexBasenames {
		probe := candidate + "/" + idx
		if r.files[probe] {
			return Resolution{ID: graph.FileID(probe), Path: probe, Resolved: true}
		}
	}
	return Resolution{ID: graph.FileID(candidate), Path: candidate, Resolved: false}
}

// ResolveRoot probes a specifier as a project-root-relative path. Python and
// Java absolute imports resolve this way after dots become slashes.
func (r *Resolver) ResolveRoot(spec string) Resolution {
	candidate := util.NormalizePatternPath(spec)
	if candidate == "" {
		return Resolution{ID: graph.ModuleID("(empty)"), External: true}
	}
	res := r.resolveFileTarget(candidate)
	if res.Resolved {
		return res
	}
	return Resolution{ID: graph.ModuleID(packageRoot(candidate)), External: true}
}

// ResolveDir records a dependency on a package directory (Go import paths).
// The directory is resolved when at least one indexed file lives under it.
func (r *Resolver) ResolveDir(dir string) Resolution {
	candidate := util.NormalizePatternPath(dir)
	if candidate == "" {
		return Resolution{ID: graph.ModuleID("(empty)"), External: true}
	}
	prefix := candidate + "/"
	for f := range r.files {
		if strings.HasPrefix(f, prefix) {
			return Resolution{ID: graph.ModuleID(candidate), Path: candidate, Resolved: true}
		}
	}
	return Resolution{ID: graph.ModuleID(candidate), Path: candidate, External: true}
}

// packageRoot reduces a bare specifier to its package identity:
// "lodash/fp" -> "lodash", "@scope/pkg/sub" -> "@scope/pkg".
func packageRoot(spec string) string {
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
