package web

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"unreplied/internal/domain"
)

// ParseFID parses a positive account id.
// Returns domain.ErrInvalidInput if the value is missing or not numeric.
func ParseFID(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: fid is required", domain.ErrInvalidInput)
	}
	fid, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || fid == 0 {
		return 0, fmt.Errorf("%w: fid %q is not a positive integer", domain.ErrInvalidInput, raw)
	}
	return fid, nil
}

// ParseLimit parses an optional page size. An empty value returns 0, which
// the use case replaces with its default.
func ParseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("%w: limit %q is not a non-negative integer", domain.ErrInvalidInput, raw)
	}
	return limit, nil
}

var hashRegex = regexp.MustCompile(`^0x[0-9a-f]+$`)

// ParseHash validates a cast hash path parameter.
func ParseHash(raw string) (string, error) {
	hash := domain.NormalizeHash(raw)
	if !hashRegex.MatchString(hash) {
		return "", fmt.Errorf("%w: hash %q is not hex", domain.ErrInvalidInput, raw)
	}
	return hash, nil
}
