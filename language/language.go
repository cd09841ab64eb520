package language

import (
	"path"
	"strings"

	"github.com/isdmx/coderoom/validator"
)

// Canonical language tags
const (
	JavaScript = "javascript"
	Python     = "python"
	C          = "c"
	CPP        = "cpp"
	Java       = "java"
)

// Command template placeholders
const (
	PlaceholderEntry  = "{entry}"
	PlaceholderClass  = "{class}"
	PlaceholderOutDir = "{out}"
)

// Profile describes how a language is laid out on disk and run
type Profile struct {
	EntryFile     string
	Extensions    []string
	Image         string
	RemoteName    string
	RemoteVersion string
	// CompileCmd is empty for interpreted languages.
	CompileCmd  string
	RunCmd      string
	Environment map[string]string
}

// Language is one registry entry
type Language struct {
	Tag             string
	Aliases         []string
	Validate        validator.Func
	SupportsPreview bool
	Profile         Profile
}

// Compiled reports whether the language runs a compile stage before executing.
func (l Language) Compiled() bool {
	return l.Profile.CompileCmd != ""
}

// IsSource reports whether filename carries one of the language's source extensions.
func (l Language) IsSource(filename string) bool {
	ext := strings.ToLower(path.Ext(filename))
	for _, e := range l.Profile.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Command renders the shell pipeline that compiles (if needed) and runs entry.
// outDir is where compiled artifacts go; it must be writable inside the sandbox.
func (l Language) Command(entry, outDir string) string {
	class := strings.TrimSuffix(path.Base(entry), path.Ext(entry))
	r := strings.NewReplacer(
		PlaceholderEntry, shellQuote(entry),
		PlaceholderClass, shellQuote(class),
		PlaceholderOutDir, shellQuote(outDir),
	)
	run := r.Replace(l.Profile.RunCmd)
	if !l.Compiled() {
		return run
	}
	return r.Replace(l.Profile.CompileCmd) + " && " + run
}

func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("._-/+", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
