package attach

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	lmbridge "github.com/Paranoid-AF/lmbridge"
)

type failingPicker struct{}

func (failingPicker) Pick(context.Context) (string, error) {
	return "", errors.New("dialog crashed")
}

func TestComposeWithFile(t *testing.T) {
	file := &lmbridge.AttachedFile{Name: "a.txt", Content: "x=1"}
	got := Compose("check this", file, DefaultLabel)
	require.Equal(t, "check this\n\nПрикрепленный файл (a.txt):\n```\nx=1\n```", got)
}

func TestComposeWithoutFile(t *testing.T) {
	require.Equal(t, "just text", Compose("just text", nil, DefaultLabel))
	require.Equal(t, "", Compose("", nil, ""))
}

func TestComposeEmptyTextStillCarriesFile(t *testing.T) {
	file := &lmbridge.AttachedFile{Name: "b.go", Content: "package b"}
	require.Equal(t, "\n\nПрикрепленный файл (b.go):\n```\npackage b\n```", Compose("", file, ""))
}

func TestLabel(t *testing.T) {
	require.Equal(t, "Attached file (a.txt):", Label("Attached file (%s):", "a.txt"))
	require.Equal(t, "Attached (a.txt):", Label("Attached:", "a.txt"))
	require.Equal(t, "Attached (a.txt):", Label("Attached", "a.txt"))
	require.Equal(t, "Прикрепленный файл (a.txt):", Label("", "a.txt"))
	require.Equal(t, "%d %s (a.txt):", Label("%d %s", "a.txt"))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# hi\n"), 0644))

	file, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, "notes.md", file.Name)
	require.Equal(t, "# hi\n", file.Content)
}

func TestReadFailures(t *testing.T) {
	dir := t.TempDir()
	for _, path := range []string{filepath.Join(dir, "missing.txt"), dir} {
		file, err := Read(path)
		require.Nil(t, file)
		require.Error(t, err)
		require.True(t, lmbridge.IsFileReadFailure(err), "path %s: got %T", path, err)
		require.Contains(t, err.Error(), path)
	}
}

func TestPickCancelled(t *testing.T) {
	file, err := Pick(context.Background(), PathPicker(""))
	require.NoError(t, err)
	require.Nil(t, file)

	file, err = Pick(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, file)
}

func TestPickReadsChosenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0644))

	file, err := Pick(context.Background(), PathPicker(path))
	require.NoError(t, err)
	require.Equal(t, &lmbridge.AttachedFile{Name: "a.txt", Content: "x=1"}, file)
}

func TestPickPickerError(t *testing.T) {
	file, err := Pick(context.Background(), failingPicker{})
	require.Nil(t, file)
	require.True(t, lmbridge.IsFileReadFailure(err))
}
