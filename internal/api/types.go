package api

import "filedrop/internal/models"

// ErrorResponse is the JSON error wrapper. Code and ErrorCode classify the
// failure for programmatic callers.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// UploadResponse is returned by POST /api/upload. On a duplicate upload
// Success is false and File describes the existing object.
type UploadResponse struct {
	Success   bool             `json:"success" yaml:"success"`
	Message   string           `json:"message" yaml:"message"`
	File      *models.FileInfo `json:"file,omitempty" yaml:"file,omitempty"`
	Code      string           `json:"code,omitempty" yaml:"code,omitempty"`
	ErrorCode int              `json:"error_code,omitempty" yaml:"error_code,omitempty"`
}

// ListResponse is returned by GET /api/files.
type ListResponse struct {
	Files []models.FileInfo `json:"files" yaml:"files"`
	Count int               `json:"count" yaml:"count"`
}

// DeleteResponse is returned by DELETE /api/files/{key}.
type DeleteResponse struct {
	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message" yaml:"message"`
}

// InfoResponse describes the running server.
type InfoResponse struct {
	Backend    string `json:"backend" yaml:"backend"`
	FileCount  int    `json:"file_count" yaml:"file_count"`
	TotalBytes int64  `json:"total_bytes" yaml:"total_bytes"`
	Version    string `json:"version" yaml:"version"`
}

// DownloadInfo carries the response headers of a download.
type DownloadInfo struct {
	Name        string
	ContentType string
	Size        int64
	ETag        string
}
