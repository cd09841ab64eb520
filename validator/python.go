package validator

import "regexp"

var pythonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`import\s+(os|sys|subprocess|socket|shlex)`),
	regexp.MustCompile(`from\s+(os|sys|subprocess)\s+import`),
	regexp.MustCompile(`\b(eval|exec|open|input|__import__)\s*\(`),
}

// Python reports the first match of every dangerous pattern.
func Python(source string, _ Mode) Result {
	var issues []string
	for _, pattern := range pythonPatterns {
		if match := pattern.FindString(source); match != "" {
			issues = append(issues, "Use of dangerous Python pattern: "+match)
		}
	}
	return newResult(issues)
}
