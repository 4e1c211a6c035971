// Package blob defines key-addressed object stores that can be read back from
// the end of an object.
package blob

import (
	"context"
	"errors"
	"io"

	"github.com/foxcpp/readback/framework/readback"
)

// UnknownBlobSize is passed to Store.Put when the size of the blob is not
// known in advance.
const UnknownBlobSize int64 = -1

var ErrNoSuchBlob = errors.New("blob: no such blob")

// Blob is an opened object. Reading back starts at the end of the object.
type Blob interface {
	readback.ReadBackCloser

	// Size returns the total size of the object.
	Size() int64
}

type Store interface {
	// Open returns ErrNoSuchBlob if the key does not exist.
	Open(ctx context.Context, key string) (Blob, error)

	// Put stores the contents of r under key, replacing any existing object.
	// size can be UnknownBlobSize.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Delete removes the objects. Missing keys are not an error.
	Delete(ctx context.Context, keys []string) error
}
