package language

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/isdmx/coderoom/config"
	"github.com/isdmx/coderoom/validator"
)

// Registry maps language tags and aliases to languages
type Registry struct {
	mu      sync.RWMutex
	byTag   map[string]Language
	aliases map[string]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byTag:   make(map[string]Language),
		aliases: make(map[string]string),
	}
}

// Register adds or replaces a language. Tags and aliases are case-insensitive.
func (r *Registry) Register(lang Language) error {
	if lang.Tag == "" {
		return fmt.Errorf("language tag is required")
	}
	if lang.Validate == nil {
		return fmt.Errorf("language %s has no validator", lang.Tag)
	}
	if lang.Profile.RunCmd == "" {
		return fmt.Errorf("language %s has no run command", lang.Tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tag := strings.ToLower(lang.Tag)
	for _, alias := range lang.Aliases {
		alias = strings.ToLower(alias)
		if owner, ok := r.aliases[alias]; ok && owner != tag {
			return fmt.Errorf("alias %s already registered for %s", alias, owner)
		}
	}

	r.byTag[tag] = lang
	r.aliases[tag] = tag
	for _, alias := range lang.Aliases {
		r.aliases[strings.ToLower(alias)] = tag
	}
	return nil
}

// Lookup resolves a tag or alias
func (r *Registry) Lookup(name string) (Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tag, ok := r.aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Language{}, false
	}
	lang, ok := r.byTag[tag]
	return lang, ok
}

// Tags returns the canonical tags in sorted order
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.byTag))
	for tag := range r.byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Names returns every accepted tag and alias in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.aliases))
	for name := range r.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyOverrides merges configured images, versions and environments into registered languages.
// Keys naming an unknown language are rejected.
func (r *Registry) ApplyOverrides(overrides map[string]config.LanguageConfig) error {
	for name, o := range overrides {
		lang, ok := r.Lookup(name)
		if !ok {
			return fmt.Errorf("languages.%s: unknown language", name)
		}
		if o.Image != "" {
			lang.Profile.Image = o.Image
		}
		if o.Version != "" {
			lang.Profile.RemoteVersion = o.Version
		}
		if len(o.Environment) > 0 {
			env := make(map[string]string, len(lang.Profile.Environment)+len(o.Environment))
			for k, v := range lang.Profile.Environment {
				env[k] = v
			}
			// viper lowercases map keys; environment variable names are conventionally upper case
			for k, v := range o.Environment {
				env[strings.ToUpper(k)] = v
			}
			lang.Profile.Environment = env
		}
		if err := r.Register(lang); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a registry with the built-in languages
func Default() *Registry {
	r := NewRegistry()
	for _, lang := range builtins() {
		if err := r.Register(lang); err != nil {
			panic(err)
		}
	}
	return r
}

// NewFromConfig builds the default registry and applies the languages section.
func NewFromConfig(cfg *config.Config) (*Registry, error) {
	r := Default()
	if err := r.ApplyOverrides(cfg.Languages); err != nil {
		return nil, fmt.Errorf("failed to apply language overrides: %w", err)
	}
	return r, nil
}

func builtins() []Language {
	return []Language{
		{
			Tag:             JavaScript,
			Aliases:         []string{"node", "nodejs", "js"},
			Validate:        validator.JavaScript,
			SupportsPreview: true,
			Profile: Profile{
				EntryFile:     "index.js",
				Extensions:    []string{".js", ".mjs", ".cjs", ".jsx"},
				Image:         "node:20-alpine",
				RemoteName:    "javascript",
				RemoteVersion: "18.15.0",
				RunCmd:        "node {entry}",
			},
		},
		{
			Tag:      Python,
			Aliases:  []string{"py", "python3"},
			Validate: validator.Python,
			Profile: Profile{
				EntryFile:     "main.py",
				Extensions:    []string{".py"},
				Image:         "python:3.11-slim",
				RemoteName:    "python",
				RemoteVersion: "3.10.0",
				RunCmd:        "python3 {entry}",
				Environment:   map[string]string{"PYTHONDONTWRITEBYTECODE": "1", "PYTHONUNBUFFERED": "1"},
			},
		},
		{
			Tag:      C,
			Validate: validator.CFamily,
			Profile: Profile{
				EntryFile:     "main.c",
				Extensions:    []string{".c", ".h"},
				Image:         "gcc:13",
				RemoteName:    "c",
				RemoteVersion: "10.2.0",
				CompileCmd:    "gcc -O2 -o {out}/app $(find . -name '*.c') -lm",
				RunCmd:        "{out}/app",
			},
		},
		{
			Tag:      CPP,
			Aliases:  []string{"c++"},
			Validate: validator.CFamily,
			Profile: Profile{
				EntryFile:     "main.cpp",
				Extensions:    []string{".cpp", ".cc", ".cxx", ".hpp", ".h"},
				Image:         "gcc:13",
				RemoteName:    "cpp",
				RemoteVersion: "10.2.0",
				CompileCmd:    "g++ -std=c++17 -O2 -o {out}/app $(find . -name '*.cpp' -o -name '*.cc' -o -name '*.cxx')",
				RunCmd:        "{out}/app",
			},
		},
		{
			Tag:      Java,
			Validate: validator.Java,
			Profile: Profile{
				EntryFile:     "Main.java",
				Extensions:    []string{".java"},
				Image:         "eclipse-temurin:17",
				RemoteName:    "java",
				RemoteVersion: "15.0.2",
				CompileCmd:    "javac -d {out}/classes $(find . -name '*.java')",
				RunCmd:        "java -cp {out}/classes {class}",
			},
		},
	}
}
