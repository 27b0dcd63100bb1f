package repository

import (
	"encoding/base64"
	"strconv"
)

// EncodeCursor/DecodeCursor implement ListImages' "opaque, base64 of
// offset" pagination cursor per SPEC_FULL.md's supplemented semantics,
// grounded on the original's offset/limit REST pagination.
func EncodeCursor(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// DecodeCursor is the inverse of EncodeCursor; an invalid or empty cursor
// decodes to offset 0 (first page).
func DecodeCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	offset, err := strconv.Atoi(string(decoded))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}
