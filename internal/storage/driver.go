package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Driver names recorded on file records.
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// ErrNotFound is returned by Stat and Read when the object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrInvalidRange is returned by Read when the requested byte range cannot
// be satisfied against the object's size.
var ErrInvalidRange = errors.New("unsatisfiable byte range")

// Meta is the read-side contract returned by both backends.
type Meta struct {
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
}

// ReadRange is an inclusive byte range. End < 0 means "to the end".
type ReadRange struct {
	Start int64
	End   int64
}

// ReadResult is a byte stream plus metadata for one read.
type ReadResult struct {
	Body         io.ReadCloser
	Meta         Meta
	ContentRange string
	Partial      bool
}

// Part is one chunk file on local disk, consumed in index order by Assemble.
type Part struct {
	Path string
	Size int64
}

// Driver abstracts blob storage so callers never branch on backend.
type Driver interface {
	Name() string
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Stat(ctx context.Context, key string) (Meta, error)
	Read(ctx context.Context, key string, rng *ReadRange) (*ReadResult, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error

	// Assemble combines uploaded parts into the final object. Each backend
	// owns its own combine semantics (stream concat vs. multipart upload).
	Assemble(ctx context.Context, key string, contentType string, parts []Part) error

	// MinPartSize is the floor every part except the last must meet.
	// Zero means no floor.
	MinPartSize() int64

	// MaxParts is the hard part-count limit. Zero means unbounded.
	MaxParts() int
}

var drivers = map[string]Driver{}

// Default is the driver new sessions target.
var Default Driver

// Register adds a driver to the per-name registry.
func Register(d Driver) {
	drivers[d.Name()] = d
}

// ForName returns the driver a file record was written with.
func ForName(name string) (Driver, error) {
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown storage driver %q", name)
	}
	return d, nil
}

// ObjectKey builds the canonical blob key. Keys are namespaced by user so
// cross-user collisions are impossible.
func ObjectKey(userID uint64, storedName string) string {
	return fmt.Sprintf("%d/%s", userID, storedName)
}

// DerivedPrefix is where all streaming assets for one file live, so
// DeletePrefix can remove them as a group.
func DerivedPrefix(userID uint64, storedName string) string {
	return fmt.Sprintf("%d/%s_hls/", userID, storedName)
}

// ThumbKey is the derived thumbnail location for one file.
func ThumbKey(userID uint64, storedName string) string {
	return fmt.Sprintf("%d/%s_thumb.jpg", userID, storedName)
}
