package workspace

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockFileSystem implements FileSystem for testing
type MockFileSystem struct {
	RealFileSystem
	writeFileErrors map[string]error
	removeAllErr    error
	removed         []string
}

func (m *MockFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	if err, exists := m.writeFileErrors[filepath.Base(filename)]; exists {
		return err
	}
	return m.RealFileSystem.WriteFile(filename, data, perm)
}

func (m *MockFileSystem) RemoveAll(path string) error {
	m.removed = append(m.removed, path)
	if m.removeAllErr != nil {
		return m.removeAllErr
	}
	return m.RealFileSystem.RemoveAll(path)
}

func TestCheckName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		hasError bool
	}{
		{"main.py", "main.py", false},
		{"src/app.js", "src/app.js", false},
		{"./src//app.js", "src/app.js", false},
		{`src\util.js`, "src/util.js", false},
		{"../escape.py", "", true},
		{"src/../../escape.py", "", true},
		{"src/../main.py", "", true},
		{"/etc/passwd", "", true},
		{"", "", true},
		{".", "", true},
		{"a\x00b", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clean, err := CheckName(tt.name)
			if tt.hasError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsafePath))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, clean)
		})
	}
}

func TestManagerLifecycle(t *testing.T) {
	logger := zaptest.NewLogger(t)
	base := t.TempDir()
	m := NewManager(logger, WithBaseDir(base))

	ws, err := m.Acquire("3f0c1f6e-request")
	require.NoError(t, err)
	require.DirExists(t, ws.Root)
	assert.Equal(t, base, filepath.Dir(ws.Root))
	assert.Contains(t, filepath.Base(ws.Root), "coderoom-3f0c1f6e-request-")

	info, err := os.Stat(ws.Root)
	require.NoError(t, err)
	assert.Equal(t, DirPermission, info.Mode().Perm())

	err = m.Materialize(ws, map[string]string{
		"main.py":        "print('hi')",
		"pkg/helpers.py": "X = 1",
	})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(ws.Root, "pkg", "helpers.py"))
	require.NoError(t, err)
	assert.Equal(t, "X = 1", string(content))
	assert.Equal(t, []string{"main.py", "pkg/helpers.py"}, ws.Names())

	m.Release(ws)
	assert.NoDirExists(t, ws.Root)

	// second release is a no-op
	m.Release(ws)
	m.Release(nil)
}

func TestManagerUniqueDirectories(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), WithBaseDir(t.TempDir()))

	a, err := m.Acquire("same")
	require.NoError(t, err)
	b, err := m.Acquire("same")
	require.NoError(t, err)
	defer m.Release(a)
	defer m.Release(b)

	assert.NotEqual(t, a.Root, b.Root)
}

func TestMaterializeRejectsTraversalBeforeWriting(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), WithBaseDir(t.TempDir()))
	ws, err := m.Acquire("req")
	require.NoError(t, err)
	defer m.Release(ws)

	err = m.Materialize(ws, map[string]string{
		"a.py":          "print(1)",
		"../outside.py": "print(2)",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsafePath))
	assert.Empty(t, ws.Files)
	assert.NoFileExists(t, filepath.Join(ws.Root, "a.py"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(ws.Root), "outside.py"))
}

func TestMaterializeWriteError(t *testing.T) {
	fs := &MockFileSystem{writeFileErrors: map[string]error{"bad.py": fmt.Errorf("disk full")}}
	m := NewManager(zaptest.NewLogger(t), WithBaseDir(t.TempDir()), WithFileSystem(fs))

	ws, err := m.Acquire("req")
	require.NoError(t, err)

	err = m.Materialize(ws, map[string]string{"bad.py": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write bad.py")

	m.Release(ws)
	assert.NoDirExists(t, ws.Root)
	assert.Equal(t, []string{ws.Root}, fs.removed)
}

func TestReleaseFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	fs := &MockFileSystem{removeAllErr: fmt.Errorf("device busy")}
	var hooked []error
	m := NewManager(zap.New(core), WithBaseDir(t.TempDir()), WithFileSystem(fs),
		WithCleanupErrorHook(func(err error) { hooked = append(hooked, err) }))

	ws, err := m.Acquire("req")
	require.NoError(t, err)
	defer os.RemoveAll(ws.Root)

	m.Release(ws)

	entries := logs.FilterMessage("failed to remove workspace").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req", entries[0].ContextMap()["request_id"])
	require.Len(t, hooked, 1)
	assert.EqualError(t, hooked[0], "device busy")
}

func createTestTar(t *testing.T, entries map[string]string) []byte {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	for name, content := range entries {
		hdr := &tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if name[len(name)-1] == '/' {
			hdr.Typeflag = tar.TypeDir
			hdr.Size = 0
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(content))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func TestFilesFromArchive(t *testing.T) {
	t.Run("ValidArchive", func(t *testing.T) {
		data := createTestTar(t, map[string]string{
			"src/":       "",
			"src/app.js": "console.log(1)",
			"index.js":   "import './src/app.js'",
		})

		files, err := FilesFromArchive(data)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"src/app.js": "console.log(1)",
			"index.js":   "import './src/app.js'",
		}, files)
	})

	t.Run("PathTraversalPrevention", func(t *testing.T) {
		data := createTestTar(t, map[string]string{"../dangerous.txt": "nope"})
		_, err := FilesFromArchive(data)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsafePath))
	})

	t.Run("AbsolutePathPrevention", func(t *testing.T) {
		data := createTestTar(t, map[string]string{"/absolute/path.txt": "nope"})
		_, err := FilesFromArchive(data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "absolute path not allowed")
	})

	t.Run("InvalidData", func(t *testing.T) {
		_, err := FilesFromArchive([]byte("invalid tar data"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create gzip reader")
	})

	t.Run("SymlinkRejected", func(t *testing.T) {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		tw := tar.NewWriter(gw)
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: "link", Linkname: "/etc/passwd", Typeflag: tar.TypeSymlink}))
		require.NoError(t, tw.Close())
		require.NoError(t, gw.Close())

		_, err := FilesFromArchive(buf.Bytes())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported file type")
	})
}
