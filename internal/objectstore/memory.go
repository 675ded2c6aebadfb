package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

type memoryObject struct {
	info ObjectInfo
	data []byte
}

// Memory is an in-process Store. It backs the memory backend and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: map[string]memoryObject{}, now: time.Now}
}

// Put stores a copy of data under key, replacing any existing object.
func (m *Memory) Put(ctx context.Context, key string, data []byte, opts PutOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	if err := ValidateKey(key); err != nil {
		return ObjectInfo{}, err
	}

	sum := md5.Sum(data)
	info := ObjectInfo{
		Key:         key,
		Size:        int64(len(data)),
		ETag:        hex.EncodeToString(sum[:]),
		ContentType: opts.ContentType,
		Metadata:    opts.Metadata.clone(),
	}

	m.mu.Lock()
	info.Uploaded = m.now().UTC()
	m.objects[key] = memoryObject{info: info, data: bytes.Clone(data)}
	m.mu.Unlock()

	return cloneInfo(info), nil
}

// Get returns the object under key.
func (m *Memory) Get(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	return &Object{
		ObjectInfo: cloneInfo(obj.info),
		Body:       io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))),
	}, nil
}

// Head returns object attributes without the payload.
func (m *Memory) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("head %q: %w", key, ErrNotFound)
	}
	info := cloneInfo(obj.info)
	return &info, nil
}

// List returns all objects ordered by key.
func (m *Memory) List(ctx context.Context) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]ObjectInfo, 0, len(m.objects))
	for _, obj := range m.objects {
		out = append(out, cloneInfo(obj.info))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes key. Missing keys are ignored.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// SetClock overrides the creation-time source. Intended for tests.
func (m *Memory) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func cloneInfo(info ObjectInfo) ObjectInfo {
	info.Metadata = info.Metadata.clone()
	return info
}

var _ Store = (*Memory)(nil)
