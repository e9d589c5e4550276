package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

// FileExporter writes finished downloads to disk. The primary path is an
// atomic write into the completed directory (temp file, fsync, rename);
// if that fails the fallback is a plain write into the incoming
// directory. Only failure of both paths is terminal.
type FileExporter struct {
	completedDir string
	incomingDir  string
	log          *zap.Logger
}

// NewFileExporter creates an exporter over the two target directories
func NewFileExporter(completedDir, incomingDir string, log *zap.Logger) *FileExporter {
	return &FileExporter{
		completedDir: completedDir,
		incomingDir:  incomingDir,
		log:          log,
	}
}

// Save writes the file and returns its final path. write is invoked once
// per attempted path.
func (e *FileExporter) Save(filename string, write func(f *os.File) error) (string, error) {
	path, err := e.saveAtomic(filename, write)
	if err == nil {
		return path, nil
	}
	e.log.Warn("primary save path failed, using fallback",
		zap.String("filename", filename),
		zap.Error(err))

	path, fallbackErr := e.saveDirect(filename, write)
	if fallbackErr == nil {
		return path, nil
	}
	return "", fmt.Errorf("%w: primary: %v; fallback: %v", domain.ErrExportFailed, err, fallbackErr)
}

// saveAtomic writes to a temp file in the completed directory, syncs and
// renames into place so an interrupted write never leaves a partial file
// under the final name.
func (e *FileExporter) saveAtomic(filename string, write func(f *os.File) error) (string, error) {
	if err := os.MkdirAll(e.completedDir, 0755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(e.completedDir, "."+filename+".part-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	finalPath := filepath.Join(e.completedDir, filename)
	if err := os.Rename(tmpName, finalPath); err != nil {
		return "", err
	}
	return finalPath, nil
}

func (e *FileExporter) saveDirect(filename string, write func(f *os.File) error) (string, error) {
	if err := os.MkdirAll(e.incomingDir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(e.incomingDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// SaveSidecar writes a small auxiliary file (e.g. a chat subtitle track)
// next to an already-saved video file. Best effort for callers.
func (e *FileExporter) SaveSidecar(videoPath, filename string, data []byte) (string, error) {
	path := filepath.Join(filepath.Dir(videoPath), filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
