package objectstore

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	localObjectsDir  = "objects"
	localTmpDir      = "tmp"
	localDataFile    = "data"
	localMetaFile    = "meta.json"
	localDirMode     = 0o755
	localFileMode    = 0o644
	localTempPattern = "put-*"
)

// Local stores objects in a directory tree. Each key maps to a directory
// derived from the SHA-256 of the key holding the payload and a JSON sidecar.
type Local struct {
	root string
	now  func() time.Time
}

type localSidecar struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ETag        string    `json:"etag"`
	ContentType string    `json:"content_type,omitempty"`
	Uploaded    time.Time `json:"uploaded"`
	Metadata    Metadata  `json:"metadata,omitempty"`
}

// NewLocal creates a local store rooted at root.
func NewLocal(root string) (*Local, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{localObjectsDir, localTmpDir} {
		if err := os.MkdirAll(filepath.Join(abs, dir), localDirMode); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", dir, err)
		}
	}
	return &Local{root: abs, now: time.Now}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string {
	return l.root
}

// Put writes data and its sidecar, replacing any existing object.
func (l *Local) Put(ctx context.Context, key string, data []byte, opts PutOptions) (ObjectInfo, error) {
	var zero ObjectInfo
	if l == nil {
		return zero, fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := ValidateKey(key); err != nil {
		return zero, err
	}

	dir := l.objectDir(key)
	if err := os.MkdirAll(dir, localDirMode); err != nil {
		return zero, err
	}
	if err := l.writeAtomic(filepath.Join(dir, localDataFile), data); err != nil {
		return zero, fmt.Errorf("write payload %q: %w", key, err)
	}

	sum := md5.Sum(data)
	sidecar := localSidecar{
		Key:         key,
		Size:        int64(len(data)),
		ETag:        hex.EncodeToString(sum[:]),
		ContentType: opts.ContentType,
		Uploaded:    l.now().UTC(),
		Metadata:    opts.Metadata.clone(),
	}
	raw, err := json.Marshal(sidecar)
	if err != nil {
		return zero, err
	}
	if err := l.writeAtomic(filepath.Join(dir, localMetaFile), raw); err != nil {
		return zero, fmt.Errorf("write metadata %q: %w", key, err)
	}

	return sidecar.info(), nil
}

// Get opens the payload of key.
func (l *Local) Get(ctx context.Context, key string) (*Object, error) {
	info, err := l.Head(ctx, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(l.objectDir(key), localDataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("get %q: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return &Object{ObjectInfo: *info, Body: f}, nil
}

// Head reads the sidecar of key.
func (l *Local) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	if l == nil {
		return nil, fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	sidecar, err := readSidecar(filepath.Join(l.objectDir(key), localMetaFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("head %q: %w", key, ErrNotFound)
		}
		return nil, err
	}
	info := sidecar.info()
	return &info, nil
}

// List walks every sidecar and returns objects ordered by key.
func (l *Local) List(ctx context.Context) ([]ObjectInfo, error) {
	if l == nil {
		return nil, fmt.Errorf("object store is not configured")
	}
	out := []ObjectInfo{}
	base := filepath.Join(l.root, localObjectsDir)
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || d.Name() != localMetaFile {
			return nil
		}
		sidecar, err := readSidecar(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		out = append(out, sidecar.info())
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes key. Missing keys are ignored.
func (l *Local) Delete(ctx context.Context, key string) error {
	if l == nil {
		return fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	dir := l.objectDir(key)
	for _, name := range []string{localMetaFile, localDataFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) objectDir(key string) string {
	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])
	return filepath.Join(l.root, localObjectsDir, digest[0:2], digest[2:4], digest)
}

func (l *Local) writeAtomic(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Join(l.root, localTmpDir), localTempPattern)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(localFileMode); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func readSidecar(path string) (localSidecar, error) {
	var sidecar localSidecar
	raw, err := os.ReadFile(path)
	if err != nil {
		return sidecar, err
	}
	if err := json.Unmarshal(raw, &sidecar); err != nil {
		return sidecar, fmt.Errorf("parse %s: %w", path, err)
	}
	return sidecar, nil
}

func (s localSidecar) info() ObjectInfo {
	return ObjectInfo{
		Key:         s.Key,
		Size:        s.Size,
		ETag:        s.ETag,
		ContentType: s.ContentType,
		Uploaded:    s.Uploaded,
		Metadata:    s.Metadata.clone(),
	}
}

var _ Store = (*Local)(nil)
