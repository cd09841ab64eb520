package depgraph

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
	"go.uber.org/zap"
)

// Manifest defaults
const (
	ProjectName      = "live-preview-project"
	ProjectVersion   = "1.0.0"
	LatestVersion    = "latest"
	DefaultExtension = ".js"
)

// importPattern finds relative import targets in files the module parser rejects (JSX, for one)
var importPattern = regexp.MustCompile(`import\s+(?:.+?\s+from\s+)?['"](.+?)['"]`)

// PackageJSON is the manifest handed to the preview bundler
type PackageJSON struct {
	Name         string            `json:"name" yaml:"name"`
	Version      string            `json:"version" yaml:"version"`
	Dependencies map[string]string `json:"dependencies" yaml:"dependencies"`
}

// Manifest is the result of one resolution
type Manifest struct {
	Dependencies map[string]string
	// Visited lists the files reached from the entry in visiting order.
	Visited []string
}

// PackageJSON wraps the dependencies in the preview project manifest
func (m Manifest) PackageJSON() PackageJSON {
	deps := m.Dependencies
	if deps == nil {
		deps = map[string]string{}
	}
	return PackageJSON{Name: ProjectName, Version: ProjectVersion, Dependencies: deps}
}

// Resolver walks a file set's static import graph
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a Resolver
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger}
}

type walk struct {
	files    map[string]string
	visited  map[string]bool
	manifest Manifest
}

// Resolve walks the graph reachable from entry. Missing files are skipped.
func (r *Resolver) Resolve(entry string, files map[string]string) Manifest {
	w := &walk{
		files:    normalizeKeys(files),
		visited:  make(map[string]bool),
		manifest: Manifest{Dependencies: make(map[string]string), Visited: []string{}},
	}
	r.visit(w, cleanName(entry))
	return w.manifest
}

func (r *Resolver) visit(w *walk, name string) {
	content, ok := w.files[name]
	if !ok || w.visited[name] {
		return
	}
	w.visited[name] = true
	w.manifest.Visited = append(w.manifest.Visited, name)

	external, relative := r.imports(name, content)
	for _, pkg := range external {
		w.manifest.Dependencies[pkg] = LatestVersion
	}
	for _, spec := range relative {
		r.visit(w, resolveRelative(name, spec, w.files))
	}
}

// imports returns external package roots and relative specifiers of one file
func (r *Resolver) imports(name, content string) (external, relative []string) {
	seenExternal := make(map[string]bool)
	seenRelative := make(map[string]bool)

	addRelative := func(spec string) {
		if !seenRelative[spec] {
			seenRelative[spec] = true
			relative = append(relative, spec)
		}
	}

	modules, err := moduleSpecifiers(content)
	if err != nil {
		r.logger.Warn("dependency parsing error", zap.String("file", name), zap.Error(err))
	}
	for _, spec := range modules {
		if isRelative(spec) {
			addRelative(spec)
			continue
		}
		if pkg := packageRoot(spec); pkg != "" && !seenExternal[pkg] {
			seenExternal[pkg] = true
			external = append(external, pkg)
		}
	}

	for _, match := range importPattern.FindAllStringSubmatch(content, -1) {
		if isRelative(match[1]) {
			addRelative(match[1])
		}
	}

	return external, relative
}

// moduleSpecifiers lists import and re-export sources in source order
func moduleSpecifiers(content string) ([]string, error) {
	ast, err := js.Parse(parse.NewInputString(content), js.Options{})
	if err != nil {
		return nil, err
	}

	var specs []string
	for _, stmt := range ast.BlockStmt.List {
		switch s := stmt.(type) {
		case *js.ImportStmt:
			specs = append(specs, unquote(s.Module))
		case *js.ExportStmt:
			if len(s.Module) > 0 {
				specs = append(specs, unquote(s.Module))
			}
		}
	}
	return specs, nil
}

func unquote(module []byte) string {
	return strings.Trim(string(module), "'\"`")
}

func isRelative(spec string) bool {
	return strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/")
}

// packageRoot maps a bare specifier to an installable package name:
// lodash/fp -> lodash, @scope/pkg/x -> @scope/pkg. URLs and node: builtins have none.
func packageRoot(spec string) string {
	if spec == "" || strings.Contains(spec, "://") || strings.HasPrefix(spec, "node:") {
		return ""
	}
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 || parts[1] == "" {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// resolveRelative turns spec, as written in importer, into a file set key
func resolveRelative(importer, spec string, files map[string]string) string {
	var target string
	if strings.HasPrefix(spec, "/") {
		target = cleanName(spec)
	} else {
		target = cleanName(path.Join(path.Dir(importer), spec))
	}

	if _, ok := files[target]; ok {
		return target
	}
	if path.Ext(target) != DefaultExtension {
		return target + DefaultExtension
	}
	return target
}

func cleanName(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

func normalizeKeys(files map[string]string) map[string]string {
	keys := make([]string, 0, len(files))
	for name := range files {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(files))
	for _, name := range keys {
		out[cleanName(name)] = files[name]
	}
	return out
}
