package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned (possibly wrapped) when a key has no object.
var ErrNotFound = errors.New("object not found")

// Metadata is the per-object custom string metadata carried alongside a payload.
type Metadata map[string]string

// ObjectInfo describes one stored object without its payload.
type ObjectInfo struct {
	Key         string
	Size        int64
	ETag        string
	ContentType string
	Uploaded    time.Time
	Metadata    Metadata
}

// Object is a stored object opened for reading. Callers must close Body.
type Object struct {
	ObjectInfo
	Body io.ReadCloser
}

// PutOptions carries the attributes written with a payload.
type PutOptions struct {
	ContentType string
	Metadata    Metadata
}

// Store is the object-store capability consumed by the file service.
// Implementations provide per-call atomicity only.
type Store interface {
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (*Object, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	List(ctx context.Context) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Stats summarizes a store's contents.
type Stats struct {
	Objects int
	Bytes   int64
}

// StatsReader is implemented by backends that can total their contents
// without a full listing.
type StatsReader interface {
	Stats(ctx context.Context) (Stats, error)
}

// CollectStats totals st, using StatsReader when available.
func CollectStats(ctx context.Context, st Store) (Stats, error) {
	if sr, ok := st.(StatsReader); ok {
		return sr.Stats(ctx)
	}
	infos, err := st.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	var out Stats
	for _, info := range infos {
		out.Objects++
		out.Bytes += info.Size
	}
	return out, nil
}

// IsNotFound reports whether err signals a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (m Metadata) clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
