// Package utils holds small helpers for request parameters shared by the
// handlers and services.
package utils

import "strconv"

const (
	// DefaultPageSize is used when a page size is missing or invalid.
	DefaultPageSize = 20
	// MaxPageSize caps client-requested page sizes.
	MaxPageSize = 100
)

// AtoiDefault parses s, returning def when s is empty or not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageBounds converts a 1-based page and a page size into an offset and a
// limit. page < 1 becomes 1; a non-positive size becomes DefaultPageSize
// and sizes above MaxPageSize are capped.
func PageBounds(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return (page - 1) * size, size
}
