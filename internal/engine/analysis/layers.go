package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"codegraph/internal/core/errors"
	"codegraph/internal/engine/graph"
	"codegraph/internal/shared/util"
)

// LayerRule forbids imports from files matching From into files matching any
// CannotImport pattern. Patterns are gobwas globs over normalized paths.
type LayerRule struct {
	Name         string   `toml:"name"`
	From         string   `toml:"from"`
	CannotImport []string `toml:"cannot_import"`
}

// LayerViolation is one edge that crosses a forbidden boundary.
type LayerViolation struct {
	Rule     string
	FromPath string
	ToPath   string
	EdgeKind graph.EdgeKind
	Location graph.Location
}

type compiledRule struct {
	rule    LayerRule
	from    glob.Glob
	targets []glob.Glob
}

// LayerAnalyzer checks import edges against architectural layer rules and can
// suggest a starting rule set from the observed directory-level flow.
type LayerAnalyzer struct {
	store *graph.Store
	rules []compiledRule
}

func NewLayerAnalyzer(store *graph.Store, rules []LayerRule) (*LayerAnalyzer, error) {
	analyzer := &LayerAnalyzer{store: store}
	for _, rule := range rules {
		compiled, err := compileRule(rule)
		if err != nil {
			return nil, err
		}
		analyzer.rules = append(analyzer.rules, compiled)
	}
	return analyzer, nil
}

func compileRule(rule LayerRule) (compiledRule, error) {
	from, err := glob.Compile(util.NormalizePatternPath(rule.From), '/')
	if err != nil {
		return compiledRule{}, errors.AddContext(
			errors.Wrap(err, errors.CodeValidationError, "invalid layer rule pattern"),
			errors.CtxPattern, rule.From)
	}
	compiled := compiledRule{rule: rule, from: from}
	for _, target := range rule.CannotImport {
		targetGlob, err := glob.Compile(util.NormalizePatternPath(target), '/')
		if err != nil {
			return compiledRule{}, errors.AddContext(
				errors.Wrap(err, errors.CodeValidationError, "invalid layer rule pattern"),
				errors.CtxPattern, target)
		}
		compiled.targets = append(compiled.targets, targetGlob)
	}
	return compiled, nil
}

// Rules returns the active rule set.
func (a *LayerAnalyzer) Rules() []LayerRule {
	out := make([]LayerRule, 0, len(a.rules))
	for _, compiled := range a.rules {
		out = append(out, compiled.rule)
	}
	return out
}

// Check evaluates every import and re-export edge against the rule set.
func (a *LayerAnalyzer) Check() []LayerViolation {
	if len(a.rules) == 0 {
		return nil
	}
	var violations []LayerViolation
	for _, edge := range a.store.AllEdges() {
		if edge.Kind != graph.EdgeImports && edge.Kind != graph.EdgeReexports {
			continue
		}
		fromNode, ok := a.store.GetNode(edge.From)
		if !ok {
			continue
		}
		toNode, ok := a.store.GetNode(edge.To)
		if !ok {
			continue
		}
		fromPath := util.NormalizePatternPath(fromNode.Path)
		toPath := util.NormalizePatternPath(toNode.Path)
		for _, rule := range a.rules {
			if !rule.from.Match(fromPath) {
				continue
			}
			for _, target := range rule.targets {
				if target.Match(toPath) {
					violations = append(violations, LayerViolation{
						Rule:     rule.rule.Name,
						FromPath: fromNode.Path,
						ToPath:   toNode.Path,
						EdgeKind: edge.Kind,
						Location: edge.Location,
					})
					break
				}
			}
		}
	}
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].FromPath != violations[j].FromPath {
			return violations[i].FromPath < violations[j].FromPath
		}
		return violations[i].ToPath < violations[j].ToPath
	})
	return violations
}

// Suggest proposes layer rules from the current graph. Files cluster by their
// top-level directory; for every directory pair where all observed imports
// flow one way, the reverse direction becomes a candidate rule. The output is
// a starting point for a config, not a verdict.
func (a *LayerAnalyzer) Suggest() []LayerRule {
	flow := make(map[string]map[string]int)
	dirs := make(map[string]bool)
	for _, edge := range a.store.AllEdges() {
		if edge.Kind != graph.EdgeImports && edge.Kind != graph.EdgeReexports {
			continue
		}
		fromNode, ok := a.store.GetNode(edge.From)
		if !ok {
			continue
		}
		toNode, ok := a.store.GetNode(edge.To)
		if !ok {
			continue
		}
		fromDir := topLevelDir(fromNode.Path)
		toDir := topLevelDir(toNode.Path)
		if fromDir == "" || toDir == "" || fromDir == toDir {
			continue
		}
		dirs[fromDir] = true
		dirs[toDir] = true
		if flow[fromDir] == nil {
			flow[fromDir] = make(map[string]int)
		}
		flow[fromDir][toDir]++
	}

	var suggestions []LayerRule
	sortedDirs := util.SortedStringKeys(dirs)
	for _, lower := range sortedDirs {
		for _, higher := range sortedDirs {
			if lower == higher {
				continue
			}
			// higher imports lower, lower never imports higher: lock it in.
			if flow[higher][lower] > 0 && flow[lower][higher] == 0 {
				suggestions = append(suggestions, LayerRule{
					Name:         fmt.Sprintf("%s-cannot-import-%s", lower, higher),
					From:         lower + "/**",
					CannotImport: []string{higher + "/**"},
				})
			}
		}
	}
	return suggestions
}

func topLevelDir(path string) string {
	path = util.NormalizePatternPath(path)
	idx := strings.IndexByte(path, '/')
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}
