package server

import (
	"strconv"
	"strings"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseLimit reads an optional positive page size.
func parseLimit(value string) (int, error) {
	parsed, err := parseOptionalInt(value)
	if err != nil {
		return 0, err
	}
	if parsed == nil {
		return 0, nil
	}
	if *parsed < 1 {
		return 0, strconv.ErrRange
	}
	return *parsed, nil
}
