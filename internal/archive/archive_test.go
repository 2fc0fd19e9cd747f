package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFSPut(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fs, err := NewFS(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := fs.Put(context.Background(), "run-1/acme/1.raw", []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(dir, "run-1/acme/1.raw"), uri)

	data, err := os.ReadFile(filepath.Join(dir, "run-1", "acme", "1.raw"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestFSPutRejectsEscapingPath(t *testing.T) {
	t.Parallel()
	fs, err := NewFS(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = fs.Put(context.Background(), "../outside.raw", []byte("x"))
	require.Error(t, err)

	_, err = fs.Put(context.Background(), " ", []byte("x"))
	require.Error(t, err)
}

func TestNewFSRequiresDirectory(t *testing.T) {
	t.Parallel()
	_, err := NewFS(Config{})
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = NewFS(Config{BaseDir: file})
	require.Error(t, err)
}

func TestNoop(t *testing.T) {
	t.Parallel()
	uri, err := Noop{}.Put(context.Background(), "a/b", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "noop://a/b", uri)
}
