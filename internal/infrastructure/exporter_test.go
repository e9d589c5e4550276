package infrastructure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

func TestSave_AtomicPath(t *testing.T) {
	base := t.TempDir()
	e := NewFileExporter(filepath.Join(base, "completed"), filepath.Join(base, "incoming"), zap.NewNop())

	path, err := e.Save("vod.ts", func(f *os.File) error {
		_, werr := f.Write([]byte("video data"))
		return werr
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "completed", "vod.ts"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("video data"), data)

	// No leftover temp files
	entries, err := os.ReadDir(filepath.Join(base, "completed"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSave_FallbackToIncoming(t *testing.T) {
	base := t.TempDir()

	// An unwritable completed dir forces the fallback path
	blocked := filepath.Join(base, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("not a dir"), 0644))

	e := NewFileExporter(filepath.Join(blocked, "completed"), filepath.Join(base, "incoming"), zap.NewNop())

	path, err := e.Save("vod.ts", func(f *os.File) error {
		_, werr := f.Write([]byte("video data"))
		return werr
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "incoming", "vod.ts"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("video data"), data)
}

func TestSave_BothPathsFail(t *testing.T) {
	base := t.TempDir()
	blocked := filepath.Join(base, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("not a dir"), 0644))

	e := NewFileExporter(filepath.Join(blocked, "a"), filepath.Join(blocked, "b"), zap.NewNop())

	_, err := e.Save("vod.ts", func(f *os.File) error { return nil })
	assert.ErrorIs(t, err, domain.ErrExportFailed)
}

func TestSaveSidecar(t *testing.T) {
	base := t.TempDir()
	e := NewFileExporter(base, base, zap.NewNop())

	videoPath := filepath.Join(base, "vod.ts")
	require.NoError(t, os.WriteFile(videoPath, []byte("video"), 0644))

	path, err := e.SaveSidecar(videoPath, "vod.vtt", []byte("WEBVTT\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "vod.vtt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("WEBVTT\n"), data)
}
