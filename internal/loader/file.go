package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

func readFile(name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("loader: file path is required")
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readLimited(file)
}

func (l *Loader) readFS(name string) ([]byte, error) {
	if l.files == nil {
		return nil, ErrNoFileSystem
	}
	if name == "" {
		return nil, errors.New("loader: fs path is required")
	}
	file, err := l.files.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if info, err := file.Stat(); err == nil && info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: name, Err: errors.New("is a directory")}
	}
	return readLimited(file)
}

// readLimited reads at most MaxDocumentSize bytes and reports larger
// payloads instead of truncating them.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrDocumentTooBig, MaxDocumentSize)
	}
	return data, nil
}
