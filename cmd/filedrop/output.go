package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"filedrop/internal/format"
	"filedrop/internal/models"
)

var (
	outputFormatter format.Formatter = format.JSONFormatter{}
	stdout          io.Writer        = os.Stdout
)

// now is swapped in tests to pin relative times.
var now = time.Now

func writeStructured(payload any) error {
	return outputFormatter.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

func writeFileList(files []models.FileInfo) error {
	if len(files) == 0 {
		return writePlain("no files\n")
	}
	for _, f := range files {
		if err := writePlain("%s\n", formatFileLine(f)); err != nil {
			return err
		}
	}
	return nil
}

func formatFileLine(f models.FileInfo) string {
	line := fmt.Sprintf("%s %-9s %-14s %s", fileIcon(f.ContentType), formatSize(f.Size), formatUploaded(f), f.Key)
	if f.Name != "" && f.Name != path.Base(f.Key) {
		line += fmt.Sprintf(" (%s)", f.Name)
	}
	return line
}

func formatSize(size int64) string {
	return humanize.IBytes(uint64(max(size, 0)))
}

func formatUploaded(f models.FileInfo) string {
	uploaded := f.UploadedTime()
	if uploaded.IsZero() {
		return "unknown"
	}
	return humanize.RelTime(uploaded, now(), "ago", "from now")
}

func writeFileDetail(f models.FileInfo) error {
	lines := []string{
		fmt.Sprintf("key: %s", f.Key),
		fmt.Sprintf("name: %s", f.Name),
		fmt.Sprintf("size: %s (%d bytes)", formatSize(f.Size), f.Size),
		fmt.Sprintf("content_type: %s", f.ContentType),
		fmt.Sprintf("uploaded_at: %s", f.UploadedAt),
	}
	if f.Checksum != "" {
		lines = append(lines, fmt.Sprintf("checksum: %s", f.Checksum))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

// fileIcon mirrors the browser's per-type glyphs.
func fileIcon(contentType string) string {
	contentType = strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "\U0001F5BC"
	case strings.HasPrefix(contentType, "video/"):
		return "\U0001F3AC"
	case strings.HasPrefix(contentType, "audio/"):
		return "\U0001F3B5"
	case strings.Contains(contentType, "pdf"):
		return "\U0001F4D5"
	case strings.Contains(contentType, "zip"), strings.Contains(contentType, "rar"), strings.Contains(contentType, "archive"):
		return "\U0001F5C4"
	default:
		return "\U0001F4C4"
	}
}
