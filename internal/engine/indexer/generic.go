package indexer

import (
	"bufio"
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"codegraph/internal/engine/graph"
)

// genericPatterns are the ordered line classifiers for the fallback indexer.
// First match wins per line. All matches are heuristic, so confidence never
// exceeds medium.
var genericPatterns = []struct {
	re         *regexp.Regexp
	confidence graph.Confidence
	reason     string
}{
	{regexp.MustCompile(`^\s*#include\s+"([^"]+)"`), graph.ConfidenceMedium, "include directive"},
	{regexp.MustCompile(`^\s*#include\s+<([^>]+)>`), graph.ConfidenceLow, "system include"},
	{regexp.MustCompile(`^\s*require_relative\s+['"]([^'"]+)['"]`), graph.ConfidenceMedium, "require_relative"},
	{regexp.MustCompile(`^\s*require\s+['"]([^'"]+)['"]`), graph.ConfidenceLow, "require"},
	{regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`), graph.ConfidenceMedium, "import statement"},
	{regexp.MustCompile(`^\s*from\s+([\w./]+)\s+import\b`), graph.ConfidenceLow, "from import"},
	{regexp.MustCompile(`^\s*include\s+['"]([^'"]+)['"]`), graph.ConfidenceLow, "include"},
	{regexp.MustCompile(`^\s*(?:source|\.)\s+([\w./-]+\.sh)\b`), graph.ConfidenceMedium, "shell source"},
	{regexp.MustCompile(`^\s*use\s+([A-Za-z_][\w:]*)\s*;`), graph.ConfidenceLow, "use statement"},
}

var genericMainPattern = regexp.MustCompile(`^\s*(?:int|void|func|fn|def|function|public\s+static\s+void)\s+main\b`)

// GenericIndexer is the text-heuristic fallback for languages without a
// native grammar. It never fails: unparseable content simply yields a bare
// file node.
type GenericIndexer struct {
	env *Env
}

func NewGenericIndexer(env *Env) *GenericIndexer { return &GenericIndexer{env: env} }

func (ix *GenericIndexer) Language() string { return "generic" }

func (ix *GenericIndexer) Supports(filePath string) bool {
	return filepath.Ext(filePath) != ""
}

func (ix *GenericIndexer) IndexFile(filePath string, content []byte) (Result, error) {
	language := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	b := newFileBuilder(ix.env, filePath, language)

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		loc := graph.Location{File: filePath, Line: lineNo, Column: 1}

		if genericMainPattern.MatchString(line) {
			b.addEntrypoint("main", "main")
			continue
		}

		for _, p := range genericPatterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			spec := m[1]
			if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
				b.addImport(spec, graph.EdgeImports, p.confidence, loc, p.reason)
			} else if strings.Contains(spec, "/") || strings.Contains(spec, ".") {
				res := ix.env.Resolver.ResolveRoot(strings.ReplaceAll(spec, "::", "/"))
				b.appendResolved(res, spec, graph.EdgeImports, p.confidence, loc, p.reason)
			} else {
				b.addExternalImport(spec, graph.EdgeImports, p.confidence, loc, p.reason)
			}
			break
		}
	}
	if err := scanner.Err(); err != nil {
		b.addError("scan failed: " + err.Error())
	}

	return b.finish(), nil
}
