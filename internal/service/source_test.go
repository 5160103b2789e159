package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002.png", "001.jpg", "notes.txt", "003.JPEG"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755))

	src, err := NewDirSource(dir, t0, time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())

	var names []string
	for i := 0; ; i++ {
		f, err := src.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, at(i), f.At)
		assert.Equal(t, f.Name, string(f.Data))
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"001.jpg", "002.png", "003.JPEG"}, names)

	_, err = NewDirSource(filepath.Join(dir, "missing"), t0, time.Second, false)
	assert.Error(t, err)
}

func TestListSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.jpg")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	list := "# captured frames\n\n" + path + "\n" + filepath.Join(dir, "gone.jpg") + "\n"
	src, err := NewListSource(strings.NewReader(list), t0, 500*time.Millisecond, false)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Len())

	f, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "data", string(f.Data))

	_, err = src.Next(context.Background())
	assert.Error(t, err)
}

func TestFileSource_PaceHonoursContext(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	src, err := NewDirSource(dir, t0, time.Hour, true)
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
