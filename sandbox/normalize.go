package sandbox

import "strings"

// NoOutputMessage replaces stdout when a program printed nothing at all
const NoOutputMessage = "Program ran successfully with no output."

// Output is what callers show the user
type Output struct {
	Stdout string `json:"stdout" yaml:"stdout"`
	Stderr string `json:"stderr" yaml:"stderr"`
}

// Normalize trims both streams and substitutes NoOutputMessage when both are empty
func Normalize(r Result) Output {
	stdout := strings.TrimSpace(r.Stdout)
	stderr := strings.TrimSpace(r.Stderr)
	if stdout == "" && stderr == "" {
		stdout = NoOutputMessage
	}
	return Output{Stdout: stdout, Stderr: stderr}
}
