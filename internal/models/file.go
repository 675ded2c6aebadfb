package models

import (
	"time"

	"filedrop/internal/filekey"
	"filedrop/internal/objectstore"
)

// Metadata keys written with every upload. Lowercase and hyphenated so they
// survive header-carried metadata.
const (
	MetaOriginalName = "original-name"
	MetaContentType  = "content-type"
	MetaUploadedAt   = "uploaded-at"
	MetaChecksum     = "checksum"
)

// DefaultContentType is used when an upload or object declares none.
const DefaultContentType = "application/octet-stream"

// FileInfo describes one stored file as exposed over the API.
type FileInfo struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	Size        int64  `json:"size" yaml:"size"`
	ContentType string `json:"contentType" yaml:"contentType"`
	UploadedAt  string `json:"uploadedAt" yaml:"uploadedAt"`
	Checksum    string `json:"checksum" yaml:"checksum"`
}

// UploadedTime parses UploadedAt. The zero time is returned for empty or
// malformed values.
func (f FileInfo) UploadedTime() time.Time {
	if f.UploadedAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, f.UploadedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FileInfoFromObject resolves the API view of a stored object, filling
// missing metadata from the store's native attributes.
func FileInfoFromObject(info objectstore.ObjectInfo) FileInfo {
	out := FileInfo{
		Key:         info.Key,
		Name:        info.Metadata[MetaOriginalName],
		Size:        info.Size,
		ContentType: info.Metadata[MetaContentType],
		UploadedAt:  info.Metadata[MetaUploadedAt],
		Checksum:    info.Metadata[MetaChecksum],
	}
	if out.Name == "" {
		out.Name = info.Key
	}
	if out.ContentType == "" {
		out.ContentType = DefaultContentType
	}
	if out.UploadedAt == "" && !info.Uploaded.IsZero() {
		out.UploadedAt = filekey.Timestamp(info.Uploaded)
	}
	return out
}

// NewFileMetadata builds the metadata record stored with an upload.
func NewFileMetadata(name, contentType, checksum string, uploadedAt time.Time) objectstore.Metadata {
	if contentType == "" {
		contentType = DefaultContentType
	}
	return objectstore.Metadata{
		MetaOriginalName: name,
		MetaContentType:  contentType,
		MetaUploadedAt:   filekey.Timestamp(uploadedAt),
		MetaChecksum:     checksum,
	}
}
