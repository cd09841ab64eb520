package validator

import "regexp"

var javaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`import\s+java\.io\.`),
	regexp.MustCompile(`import\s+java\.net\.`),
	regexp.MustCompile(`import\s+java\.lang\.reflect\.`),
	regexp.MustCompile(`\b(Runtime\.getRuntime\(\)|System\.exit|ProcessBuilder|new\s+FileInputStream)`),
}

// Java flags dangerous package imports and runtime, reflection or IO call sites.
func Java(source string, _ Mode) Result {
	var issues []string
	for _, pattern := range javaPatterns {
		if match := pattern.FindString(source); match != "" {
			issues = append(issues, "Use of dangerous Java code: "+match)
		}
	}
	return newResult(issues)
}
