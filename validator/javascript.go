package validator

import (
	"bytes"
	"errors"
	"io"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

var jsDangerousIdentifiers = map[string]bool{
	"require":       true,
	"process":       true,
	"eval":          true,
	"Function":      true,
	"global":        true,
	"globalThis":    true,
	"child_process": true,
	"fs":            true,
	"os":            true,
}

// Browser globals only make sense in preview, never on the server.
var jsBrowserIdentifiers = map[string]bool{
	"window":      true,
	"document":    true,
	"HTMLElement": true,
	"navigator":   true,
}

// JavaScript tokenizes the source and flags deny-listed identifier tokens.
// Identifiers inside strings and comments are not tokens and never match.
func JavaScript(source string, mode Mode) Result {
	var issues []string

	l := js.NewLexer(parse.NewInputString(source))
	var prev []byte
	var prevType js.TokenType
	for {
		tt, data := l.Next()
		if tt == js.ErrorToken {
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				issues = append(issues, "Syntax error: "+err.Error())
			}
			break
		}

		// A slash after an operand is division, anywhere else it starts a regex literal.
		if (tt == js.DivToken || tt == js.DivEqToken) && !endsOperand(prevType, prev) {
			tt, data = l.RegExp()
			if tt == js.ErrorToken {
				msg := "invalid regular expression"
				if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
					msg = err.Error()
				}
				issues = append(issues, "Syntax error: "+msg)
				break
			}
		}

		if isTrivia(tt, data) {
			continue
		}

		if js.IsIdentifier(tt) {
			name := string(data)
			if jsDangerousIdentifiers[name] {
				issues = append(issues, "Use of dangerous identifier: "+name)
			}
			if mode == ModeExecute && jsBrowserIdentifiers[name] {
				issues = append(issues, "Use of browser-specific API: "+name)
			}
		}

		prevType, prev = tt, data
	}

	return newResult(issues)
}

func isTrivia(tt js.TokenType, data []byte) bool {
	switch tt {
	case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken:
		return true
	}
	return bytes.HasPrefix(data, []byte("//")) || bytes.HasPrefix(data, []byte("/*"))
}

var operandKeywords = map[string]bool{
	"this":  true,
	"super": true,
	"true":  true,
	"false": true,
	"null":  true,
}

// endsOperand treats every ")" as closing an expression. After an if/while/for header that reads a
// following regex as division, so identifiers inside it are still checked and may be reported.
func endsOperand(tt js.TokenType, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if js.IsIdentifier(tt) || operandKeywords[string(data)] {
		return true
	}
	switch c := data[0]; {
	case c >= '0' && c <= '9', c == '.' && len(data) > 1 && data[1] >= '0' && data[1] <= '9':
		return true
	case c == '"', c == '\'', c == '`':
		return true
	}
	switch string(data) {
	case ")", "]", "}", "++", "--":
		return true
	}
	// template tails end in a backtick
	return tt == js.RegExpToken || data[len(data)-1] == '`'
}
