package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes artifacts under Dir/<docID>/.
type FileSink struct {
	Dir    string
	Format string
}

func NewFileSink(dir, format string) *FileSink {
	return &FileSink{Dir: dir, Format: format}
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Write(ctx context.Context, a *Artifacts) error {
	data, err := EncodeChunks(a.Chunks, s.Format)
	if err != nil {
		return err
	}
	root := filepath.Join(s.Dir, a.DocID)
	if err := writeFile(filepath.Join(root, a.ChunksFile), data); err != nil {
		return err
	}
	for _, img := range a.Images {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(root, filepath.FromSlash(img.Path)), img.Data); err != nil {
			return err
		}
	}
	return nil
}

// writeFile replaces path atomically through a temp file in the same directory.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
