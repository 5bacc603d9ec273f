package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalDriver stores blobs under a root directory on the local filesystem.
type LocalDriver struct {
	root string
}

// NewLocalDriver creates a local driver rooted at dir.
func NewLocalDriver(dir string) (*LocalDriver, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &LocalDriver{root: abs}, nil
}

// Name returns the driver name recorded on file records.
func (d *LocalDriver) Name() string {
	return DriverLocal
}

// safeJoin resolves a key under the root and rejects traversal outside it.
func (d *LocalDriver) safeJoin(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || cleaned == string(filepath.Separator) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	full := filepath.Join(d.root, cleaned)
	if full != d.root && !strings.HasPrefix(full, d.root+string(filepath.Separator)) {
		return "", fmt.Errorf("storage key %q escapes root", key)
	}
	return full, nil
}

// Put writes a stream to the keyed path, creating parents as needed.
func (d *LocalDriver) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	full, err := d.safeJoin(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	out, err := os.Create(full)
	if err != nil {
		return err
	}
	written, err := io.Copy(out, reader)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(full)
		return err
	}
	if size >= 0 && written != size {
		_ = os.Remove(full)
		return fmt.Errorf("short write: expected %d bytes, wrote %d", size, written)
	}
	return nil
}

// Stat returns normalized metadata. The filesystem has no native ETag, so a
// weak one is synthesized from size and mtime.
func (d *LocalDriver) Stat(ctx context.Context, key string) (Meta, error) {
	full, err := d.safeJoin(key)
	if err != nil {
		return Meta{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, ErrNotFound
		}
		return Meta{}, err
	}
	if info.IsDir() {
		return Meta{}, ErrNotFound
	}
	return Meta{
		Size:         info.Size(),
		ETag:         fmt.Sprintf("W/\"%x-%x\"", info.Size(), info.ModTime().UnixNano()),
		LastModified: info.ModTime(),
	}, nil
}

// Read opens the keyed file, optionally restricted to a byte range.
func (d *LocalDriver) Read(ctx context.Context, key string, rng *ReadRange) (*ReadResult, error) {
	meta, err := d.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	full, err := d.safeJoin(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if rng == nil {
		return &ReadResult{Body: file, Meta: meta}, nil
	}
	start, end := rng.Start, rng.End
	if end < 0 || end >= meta.Size {
		end = meta.Size - 1
	}
	if start < 0 || start > end {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %d-%d for size %d", ErrInvalidRange, rng.Start, rng.End, meta.Size)
	}
	if _, err := file.Seek(start, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, err
	}
	body := &limitedFile{file: file, remaining: end - start + 1}
	return &ReadResult{
		Body:         body,
		Meta:         meta,
		ContentRange: fmt.Sprintf("bytes %d-%d/%d", start, end, meta.Size),
		Partial:      start != 0 || end != meta.Size-1,
	}, nil
}

// Delete removes the keyed file. A missing file is not an error.
func (d *LocalDriver) Delete(ctx context.Context, key string) error {
	full, err := d.safeJoin(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeletePrefix removes every object under the prefix directory.
func (d *LocalDriver) DeletePrefix(ctx context.Context, prefix string) error {
	full, err := d.safeJoin(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return err
	}
	return os.RemoveAll(full)
}

// Assemble concatenates parts in order into the final path through a single
// output stream.
func (d *LocalDriver) Assemble(ctx context.Context, key string, contentType string, parts []Part) error {
	full, err := d.safeJoin(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	out, err := os.Create(full)
	if err != nil {
		return err
	}
	for _, part := range parts {
		if err := ctx.Err(); err != nil {
			_ = out.Close()
			_ = os.Remove(full)
			return err
		}
		src, err := os.Open(part.Path)
		if err != nil {
			_ = out.Close()
			_ = os.Remove(full)
			return err
		}
		_, err = io.Copy(out, src)
		_ = src.Close()
		if err != nil {
			_ = out.Close()
			_ = os.Remove(full)
			return err
		}
	}
	return out.Close()
}

// MinPartSize is zero: the filesystem has no part-size floor.
func (d *LocalDriver) MinPartSize() int64 {
	return 0
}

// MaxParts is zero: the filesystem has no part-count limit.
func (d *LocalDriver) MaxParts() int {
	return 0
}

// limitedFile reads at most remaining bytes from the underlying file.
type limitedFile struct {
	file      *os.File
	remaining int64
}

func (l *limitedFile) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.file.Read(p)
	l.remaining -= int64(n)
	return n, err
}

func (l *limitedFile) Close() error {
	return l.file.Close()
}
