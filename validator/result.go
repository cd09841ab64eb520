package validator

import "fmt"

// Mode tells a validator whether the code is about to run or only be analyzed
type Mode string

// Supported modes
const (
	ModeExecute Mode = "execute"
	ModePreview Mode = "preview"
)

// ParseMode maps a request mode string to a Mode. The empty string means execute.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeExecute:
		return ModeExecute, nil
	case ModePreview:
		return ModePreview, nil
	default:
		return "", fmt.Errorf("invalid mode: %s, must be 'execute' or 'preview'", s)
	}
}

// Result is the outcome of screening one request
type Result struct {
	Passed bool     `json:"passed" yaml:"passed"`
	Issues []string `json:"issues" yaml:"issues"`
}

// Func screens source text for one language. It never panics on malformed input.
type Func func(source string, mode Mode) Result

func newResult(issues []string) Result {
	if issues == nil {
		issues = []string{}
	}
	return Result{Passed: len(issues) == 0, Issues: issues}
}

// Merge combines results of several files of the same language, prefixing
// each issue with the file it came from.
func Merge(results map[string]Result, order []string) Result {
	var issues []string
	for _, name := range order {
		res, ok := results[name]
		if !ok {
			continue
		}
		for _, issue := range res.Issues {
			issues = append(issues, name+": "+issue)
		}
	}
	return newResult(issues)
}
