package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/isdmx/coderoom/pipeline"
	"github.com/isdmx/coderoom/sandbox"
)

type MockRunner struct {
	resp pipeline.Response
	err  error
}

func (m *MockRunner) Run(_ context.Context, _ pipeline.Request) (pipeline.Response, error) {
	return m.resp, m.err
}

func TestDependencyGraph(t *testing.T) {
	require.NoError(t, fx.ValidateApp(coreModule(), serveModule()))
	require.NoError(t, fx.ValidateApp(coreModule(), fx.Invoke(runStdio)))
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "mcp-stdio", "check"}, names)
}

func TestReadRequest(t *testing.T) {
	t.Run("Stdin", func(t *testing.T) {
		req, err := readRequest(strings.NewReader(`{"language":"python","code":"print(1)"}`), nil)
		require.NoError(t, err)
		assert.Equal(t, "python", req.Language)
		assert.Equal(t, "print(1)", req.Code)
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "req.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"language":"javascript","entry":"index.js","files":{"index.js":"1"}}`), 0o600))

		req, err := readRequest(strings.NewReader(""), []string{path})
		require.NoError(t, err)
		assert.Equal(t, "index.js", req.Entry)
		assert.Equal(t, map[string]string{"index.js": "1"}, req.Files)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := readRequest(strings.NewReader(""), []string{filepath.Join(t.TempDir(), "nope.json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot read request")
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := readRequest(strings.NewReader("{"), []string{"-"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid request JSON")
	})
}

func TestRunCheck(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		runner := &MockRunner{resp: pipeline.Response{Execution: &sandbox.Output{Stdout: "hi"}}}

		result, err := runCheck(context.Background(), runner, pipeline.Request{})
		require.NoError(t, err)
		require.NotNil(t, result.Output)
		assert.Equal(t, "hi", result.Output.Stdout)
		assert.Empty(t, result.Error)
	})

	t.Run("ValidationFailed", func(t *testing.T) {
		runner := &MockRunner{err: &pipeline.Error{
			Kind:    pipeline.KindValidationFailed,
			Message: pipeline.MsgValidationFailed,
			Issues:  []string{"Use of dangerous Python pattern: import os"},
		}}

		result, err := runCheck(context.Background(), runner, pipeline.Request{})
		require.Error(t, err)
		assert.Equal(t, "request failed: ValidationFailed", err.Error())
		assert.Equal(t, pipeline.MsgValidationFailed, result.Error)
		assert.Equal(t, []string{"Use of dangerous Python pattern: import os"}, result.Issues)
	})

	t.Run("Unclassified", func(t *testing.T) {
		result, err := runCheck(context.Background(), &MockRunner{err: errors.New("boom")}, pipeline.Request{})
		require.Error(t, err)
		assert.Equal(t, "request failed: InternalError", err.Error())
		assert.Equal(t, "boom", result.Error)
	})
}

func TestWriteResult(t *testing.T) {
	result := checkResult{Output: &sandbox.Output{Stdout: "hi", Stderr: ""}}

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "yaml", result))
	assert.Equal(t, "output:\n  stdout: hi\n  stderr: \"\"\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResult(&buf, "json", result))
	assert.JSONEq(t, `{"output":{"stdout":"hi","stderr":""}}`, buf.String())
}

func TestCheckCommandRejectsFormat(t *testing.T) {
	cmd := newCheckCmd()
	cmd.SetArgs([]string{"--output", "xml"})
	cmd.SetIn(strings.NewReader("{}"))
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format: xml")
}
