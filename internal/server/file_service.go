package server

import (
	"context"
	"fmt"
	"io"
	"mime"
	"sort"
	"strings"
	"time"

	"filedrop/internal/filekey"
	"filedrop/internal/models"
	"filedrop/internal/objectstore"
)

// maxKeyAttempts bounds the search for a free timestamped key.
const maxKeyAttempts = 100

// FileService implements upload, listing, download and deletion on top of
// an object store.
type FileService struct {
	store objectstore.Store
	now   func() time.Time

	allowedMediaTypes map[string]struct{}
}

// UploadInput is one file received for storage.
type UploadInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadResult is the outcome of an upload. When Duplicate is set nothing
// was written and File describes the object already holding the content.
type UploadResult struct {
	File      models.FileInfo
	Duplicate bool
}

// FileContent is an opened download. Callers must close Body.
type FileContent struct {
	Body        io.ReadCloser
	Name        string
	ContentType string
	ETag        string
	Size        int64
}

// NewFileService constructs a FileService.
func NewFileService(st objectstore.Store) *FileService {
	return &FileService{store: st, now: time.Now}
}

// SetClock overrides the time source used for upload timestamps.
func (s *FileService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ConfigurePolicy restricts uploads to the given media types. An empty list
// allows everything.
func (s *FileService) ConfigurePolicy(allowedMediaTypes []string) {
	if s == nil {
		return
	}
	normalized := map[string]struct{}{}
	for _, raw := range allowedMediaTypes {
		mediaType, err := normalizeMediaType(raw)
		if err != nil || mediaType == "" {
			continue
		}
		normalized[mediaType] = struct{}{}
	}
	if len(normalized) == 0 {
		s.allowedMediaTypes = nil
		return
	}
	s.allowedMediaTypes = normalized
}

// Upload stores in unless identical content is already present.
func (s *FileService) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if in.Name == "" {
		return UploadResult{}, badRequestCode(fmt.Errorf("No file provided"), ErrCodeMissingRequired)
	}
	if err := objectstore.ValidateKey(in.Name); err != nil {
		return UploadResult{}, badRequestCode(err, ErrCodeInvalidKey)
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = models.DefaultContentType
	}
	if err := s.validateAllowedMediaType(contentType); err != nil {
		return UploadResult{}, err
	}

	checksum := filekey.Checksum(in.Data)

	existing, err := s.findByChecksum(ctx, checksum)
	if err != nil {
		return UploadResult{}, storeFailure(err, "Upload failed")
	}
	if existing != nil {
		file := models.FileInfoFromObject(*existing)
		file.Checksum = checksum
		return UploadResult{File: file, Duplicate: true}, nil
	}

	collides := true
	if _, err := s.store.Head(ctx, in.Name); err != nil {
		if !objectstore.IsNotFound(err) {
			return UploadResult{}, storeFailure(err, "Upload failed")
		}
		collides = false
	}

	now := s.now()
	key := filekey.StorageKey(in.Name, collides, now)
	if collides {
		if key, err = s.firstFreeKey(ctx, key); err != nil {
			return UploadResult{}, storeFailure(err, "Upload failed")
		}
	}
	if err := objectstore.ValidateKey(key); err != nil {
		return UploadResult{}, badRequestCode(err, ErrCodeInvalidKey)
	}

	meta := models.NewFileMetadata(in.Name, contentType, checksum, now)
	if _, err := s.store.Put(ctx, key, in.Data, objectstore.PutOptions{ContentType: contentType, Metadata: meta}); err != nil {
		return UploadResult{}, storeFailure(err, "Upload failed")
	}

	return UploadResult{File: models.FileInfo{
		Key:         key,
		Name:        in.Name,
		Size:        int64(len(in.Data)),
		ContentType: contentType,
		UploadedAt:  meta[models.MetaUploadedAt],
		Checksum:    checksum,
	}}, nil
}

// firstFreeKey returns base, or base numbered -2, -3, ... when uploads in
// the same millisecond already took it.
func (s *FileService) firstFreeKey(ctx context.Context, base string) (string, error) {
	for n := 1; n <= maxKeyAttempts; n++ {
		candidate := base
		if n > 1 {
			candidate = filekey.Numbered(base, n)
		}
		_, err := s.store.Head(ctx, candidate)
		if objectstore.IsNotFound(err) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free key for %q after %d attempts", base, maxKeyAttempts)
}

// findByChecksum scans the whole store and returns the first object whose
// checksum metadata matches.
func (s *FileService) findByChecksum(ctx context.Context, checksum string) (*objectstore.ObjectInfo, error) {
	listed, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, obj := range listed {
		info, err := s.store.Head(ctx, obj.Key)
		if err != nil {
			if objectstore.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if info.Metadata[models.MetaChecksum] == checksum {
			return info, nil
		}
	}
	return nil, nil
}

// List returns every stored file, newest upload first.
func (s *FileService) List(ctx context.Context) ([]models.FileInfo, error) {
	listed, err := s.store.List(ctx)
	if err != nil {
		return nil, storeFailure(err, "Failed to list files")
	}

	files := make([]models.FileInfo, 0, len(listed))
	for _, obj := range listed {
		info, err := s.store.Head(ctx, obj.Key)
		if err != nil {
			if objectstore.IsNotFound(err) {
				continue
			}
			return nil, storeFailure(err, "Failed to list files")
		}
		files = append(files, models.FileInfoFromObject(*info))
	}

	sortNewestFirst(files)
	return files, nil
}

// sortNewestFirst orders by upload time descending. Entries whose timestamp
// does not parse sort last.
func sortNewestFirst(files []models.FileInfo) {
	times := make(map[string]time.Time, len(files))
	for _, f := range files {
		times[f.Key] = f.UploadedTime()
	}
	sort.SliceStable(files, func(i, j int) bool {
		ti, tj := times[files[i].Key], times[files[j].Key]
		if ti.IsZero() != tj.IsZero() {
			return !ti.IsZero()
		}
		return ti.After(tj)
	})
}

// Open fetches key for download.
func (s *FileService) Open(ctx context.Context, key string) (*FileContent, error) {
	obj, err := s.store.Get(ctx, key)
	if err != nil {
		if objectstore.IsNotFound(err) {
			return nil, notFoundCode(fmt.Errorf("File not found"), ErrCodeFileNotFound)
		}
		return nil, storeFailure(err, "Download failed")
	}

	name := obj.Metadata[models.MetaOriginalName]
	if name == "" {
		name = key
	}
	contentType := firstNonEmpty(obj.ContentType, obj.Metadata[models.MetaContentType], models.DefaultContentType)

	return &FileContent{
		Body:        obj.Body,
		Name:        name,
		ContentType: contentType,
		ETag:        obj.ETag,
		Size:        obj.Size,
	}, nil
}

// Delete removes key after confirming it exists.
func (s *FileService) Delete(ctx context.Context, key string) error {
	if _, err := s.store.Head(ctx, key); err != nil {
		if objectstore.IsNotFound(err) {
			return notFoundCode(fmt.Errorf("File not found"), ErrCodeFileNotFound)
		}
		return storeFailure(err, "Deletion failed")
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return storeFailure(err, "Deletion failed")
	}
	return nil
}

// Stats totals the stored files.
func (s *FileService) Stats(ctx context.Context) (objectstore.Stats, error) {
	stats, err := objectstore.CollectStats(ctx, s.store)
	if err != nil {
		return stats, storeFailure(err, "Failed to read store info")
	}
	return stats, nil
}

func (s *FileService) validateAllowedMediaType(contentType string) error {
	if len(s.allowedMediaTypes) == 0 {
		return nil
	}
	mediaType, err := normalizeMediaType(contentType)
	if err != nil {
		return err
	}
	if _, ok := s.allowedMediaTypes[mediaType]; ok {
		return nil
	}
	return badRequestCode(fmt.Errorf("media type %q is not allowed", mediaType), ErrCodeMediaTypeNotAllowed)
}

func normalizeMediaType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", badRequestCode(fmt.Errorf("invalid media type"), ErrCodeInvalidArgument)
	}
	return strings.ToLower(strings.TrimSpace(parsed)), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
