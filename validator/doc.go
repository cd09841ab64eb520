// Package validator screens untrusted source text before it is executed.
//
// Every language has one pure function with the Func signature. The rules
// are allow-by-default and deny-by-pattern: a match produces a human
// readable issue, anything else passes. This is a deterrent layer only.
// Isolation is the job of the sandbox backend and its resource limits.
package validator
