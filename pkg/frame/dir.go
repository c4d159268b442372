package frame

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir writes one frame file per rank and generation.
type Dir struct {
	Path string
	// PBM selects the binary format instead of text.
	PBM bool
}

// Prepare removes any previous content and recreates the directory.
func (d Dir) Prepare() error {
	if err := os.RemoveAll(d.Path); err != nil {
		return fmt.Errorf("frame: clear %s: %w", d.Path, err)
	}
	if err := os.MkdirAll(d.Path, 0o775); err != nil {
		return fmt.Errorf("frame: create %s: %w", d.Path, err)
	}
	return nil
}

// Name returns the file name of a frame, e.g. gen-12.node-3.txt.
func (d Dir) Name(gen uint64, rank int) string {
	ext := "txt"
	if d.PBM {
		ext = "pbm"
	}
	return fmt.Sprintf("gen-%d.node-%d.%s", gen, rank, ext)
}

// WriteFrame stores the frame of one rank.
func (d Dir) WriteFrame(gen uint64, rank int, s Source) error {
	path := filepath.Join(d.Path, d.Name(gen, rank))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	if d.PBM {
		err = EncodePBM(f, s)
	} else {
		err = Encode(f, s)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("frame: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("frame: close %s: %w", path, err)
	}
	return nil
}
