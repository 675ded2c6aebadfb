package main

import (
	"context"
	"errors"
	"net"

	"filedrop/internal/api"
)

// Numeric codes from the server's error table that get a specific hint.
const (
	errCodeRequestTooLarge     = 1002
	errCodeMediaTypeNotAllowed = 1015
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "resource_exhausted":
			lines = append(lines, "hint: the server is busy with other uploads; retry shortly or raise uploads.max_concurrent.")
		case "conflict":
			if apiErr.Existing != nil {
				lines = append(lines, "hint: identical content is already stored as "+apiErr.Existing.Key+".")
			}
		}
		if apiErr.ErrorCode == errCodeRequestTooLarge {
			lines = append(lines, "hint: the file exceeds uploads.max_upload_bytes on the server.")
		}
		if apiErr.ErrorCode == errCodeMediaTypeNotAllowed {
			lines = append(lines, "hint: the server only accepts the media types in uploads.allowed_media_types.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify FILEDROP_API_URL points to a filedrop server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase FILEDROP_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a filedrop server is running at FILEDROP_API_URL.",
			"hint: start local server manually with: filedrop srv",
			"hint: you can increase FILEDROP_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
