// Package filekey derives content checksums and storage keys for uploads.
package filekey

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 form used for upload timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var keySafe = strings.NewReplacer(":", "-", ".", "-")

// Checksum returns the lowercase hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Timestamp formats now in UTC with millisecond precision.
func Timestamp(now time.Time) string {
	return now.UTC().Format(TimestampLayout)
}

// Timestamped inserts "_<ts>" before the last extension of name, or appends
// it when name has no dot.
func Timestamped(name string, now time.Time) string {
	ts := keySafe.Replace(Timestamp(now))
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name + "_" + ts
	}
	return name[:i] + "_" + ts + name[i:]
}

// StorageKey picks the key for a new upload of name. A name already taken by
// different content gets a timestamped key.
func StorageKey(name string, collides bool, now time.Time) string {
	if collides {
		return Timestamped(name, now)
	}
	return name
}

// Numbered appends "-<n>" before the last extension of key.
func Numbered(key string, n int) string {
	suffix := "-" + strconv.Itoa(n)
	i := strings.LastIndex(key, ".")
	if i < 0 {
		return key + suffix
	}
	return key[:i] + suffix + key[i:]
}
