package handlers

import (
	"strconv"
)

// parsePositiveInt returns s as a positive int, or fallback when missing or invalid.
func parsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}

	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}

	return n
}
