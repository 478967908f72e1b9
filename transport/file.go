package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// FileConfig holds the file transport knobs.
type FileConfig struct {
	// Path is the live log file.
	Path string
	// MaxSizeBytes rotates the file when an append would exceed it.
	// Zero disables rotation.
	MaxSizeBytes int64
	// MaxFiles is the number of rotated files retained. Zero keeps one.
	MaxFiles int
	// CompressRotated gzips rotated segments.
	CompressRotated bool
}

// FileTransport appends raw JSON lines to a file with optional size-based
// rotation. Rotated segments shift path.1 -> path.2 -> ... and the oldest
// past MaxFiles is removed.
type FileTransport struct {
	cfg FileConfig

	mu   sync.Mutex
	f    *os.File
	size int64
}

// NewFile opens (or creates) the live file for appending.
func NewFile(cfg FileConfig) (*FileTransport, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file transport: path is required")
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 1
	}
	t := &FileTransport{cfg: cfg}
	if err := t.open(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *FileTransport) open() error {
	f, err := os.OpenFile(t.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	t.f = f
	t.size = info.Size()
	return nil
}

func (t *FileTransport) Name() string { return "file" }

func (t *FileTransport) Send(_ context.Context, p *Payload) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		if err := t.open(); err != nil {
			return transientErr("file", err)
		}
	}
	if t.cfg.MaxSizeBytes > 0 && t.size > 0 && t.size+int64(len(p.Raw)) > t.cfg.MaxSizeBytes {
		if err := t.rotate(); err != nil {
			return transientErr("file", err)
		}
	}
	n, err := t.f.Write(p.Raw)
	t.size += int64(n)
	if err != nil {
		return transientErr("file", err)
	}
	return nil
}

// rotate closes the live file, shifts retained segments up by one, and
// reopens a fresh live file. Called with the lock held.
func (t *FileTransport) rotate() error {
	if err := t.f.Close(); err != nil {
		return err
	}
	t.f = nil

	ext := ""
	if t.cfg.CompressRotated {
		ext = ".gz"
	}
	// Drop the oldest, then shift path.N-1 -> path.N.
	oldest := t.rotatedName(t.cfg.MaxFiles, ext)
	_ = os.Remove(oldest)
	for i := t.cfg.MaxFiles - 1; i >= 1; i-- {
		_ = os.Rename(t.rotatedName(i, ext), t.rotatedName(i+1, ext))
	}

	if t.cfg.CompressRotated {
		if err := gzipFile(t.cfg.Path, t.rotatedName(1, ext)); err != nil {
			return err
		}
		if err := os.Remove(t.cfg.Path); err != nil {
			return err
		}
	} else {
		if err := os.Rename(t.cfg.Path, t.rotatedName(1, "")); err != nil {
			return err
		}
	}
	return t.open()
}

func (t *FileTransport) rotatedName(i int, ext string) string {
	return t.cfg.Path + "." + strconv.Itoa(i) + ext
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (t *FileTransport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	return t.f.Sync()
}

func (t *FileTransport) Shutdown(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Sync()
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	t.f = nil
	return err
}

// Dir returns the directory holding the live file.
func (t *FileTransport) Dir() string { return filepath.Dir(t.cfg.Path) }
