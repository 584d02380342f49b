package models

import "strings"

// nameKeyLen is the length of the normalized name prefix used as a fusion
// key when no checksum-valid identifier is available.
const nameKeyLen = 20

// NormalizeNameKey lowercases, collapses whitespace, and truncates a security
// name to a fixed-length prefix suitable for dedup grouping.
func NormalizeNameKey(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	key := strings.Join(fields, " ")
	if len(key) > nameKeyLen {
		key = key[:nameKeyLen]
	}
	return key
}
