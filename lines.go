package main

import (
	"fmt"
	"sort"
	"strings"
)

// SortDirection selects the order used by SortLines
type SortDirection string

const (
	SortAscending  SortDirection = "ascending"
	SortDescending SortDirection = "descending"
)

// ParseSortDirection accepts "asc", "ascending", "desc" or "descending"
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "":
		return SortAscending, nil
	case "desc", "descending":
		return SortDescending, nil
	default:
		return SortAscending, fmt.Errorf("unknown sort direction: %s", s)
	}
}

// Deduplicate keeps the first occurrence of every trimmed, non-empty line
func Deduplicate(text string) string {
	lines := trimmedLines(text)
	seen := make(map[string]bool, len(lines))
	result := lines[:0]

	for _, line := range lines {
		if seen[line] {
			continue
		}
		seen[line] = true
		result = append(result, line)
	}

	return strings.Join(result, "\n")
}

// SortLines sorts trimmed, non-empty lines by code point order
func SortLines(text string, direction SortDirection) string {
	lines := trimmedLines(text)
	sort.Strings(lines)

	if direction == SortDescending {
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
	}

	return strings.Join(lines, "\n")
}

// CountLines counts newline separated lines, not counting a blank first line.
// An empty text has zero lines.
func CountLines(text string) int {
	lines := strings.Split(text, "\n")
	if strings.TrimSpace(lines[0]) == "" {
		return len(lines) - 1
	}
	return len(lines)
}

// trimmedLines splits text on line breaks, trims every line and drops empty ones
func trimmedLines(text string) []string {
	var result []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}
