package repository

import (
	"slices"
	"strings"

	"gorm.io/gorm"
)

// searchScope matches term case-insensitively against any of the given columns.
func searchScope(term string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		term = strings.TrimSpace(term)
		if term == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + strings.ToLower(term) + "%"
		clauses := make([]string, len(columns))
		args := make([]interface{}, len(columns))
		for i, c := range columns {
			clauses[i] = "LOWER(" + c + ") LIKE ?"
			args[i] = pattern
		}
		return db.Where(strings.Join(clauses, " OR "), args...)
	}
}

// overlaps reports whether a and b share at least one element.
func overlaps(a, b []string) bool {
	for _, v := range b {
		if slices.Contains(a, v) {
			return true
		}
	}
	return false
}

// appendUnique returns list with v added unless already present.
func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, list...)
	return append(out, v)
}
