package handler

import (
	"strings"
)

// cleanList trims entries and drops empty and repeated ones.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// queryList reads a comma separated query parameter.
func queryList(raw string) []string {
	if raw == "" {
		return nil
	}
	return cleanList(strings.Split(raw, ","))
}
