package validator

import (
	"regexp"
	"strings"
)

var cDangerousIncludes = []string{
	"#include <unistd.h>",
	"#include <sys/types.h>",
	"#include <sys/socket.h>",
	"#include <fcntl.h>",
}

var cPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(system|exec|fork|popen|socket|open)\s*\(`),
}

// CFamily screens C and C++ sources: header includes by substring, libc calls by regex.
func CFamily(source string, _ Mode) Result {
	var issues []string
	for _, inc := range cDangerousIncludes {
		if strings.Contains(source, inc) {
			issues = append(issues, "Dangerous include: "+inc)
		}
	}
	for _, pattern := range cPatterns {
		if match := pattern.FindString(source); match != "" {
			issues = append(issues, "Use of dangerous function: "+match)
		}
	}
	return newResult(issues)
}
