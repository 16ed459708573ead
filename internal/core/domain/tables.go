package domain

import (
	"slices"
	"strings"
)

// TableSet normalizes a list of table names: sorted, without duplicates or blanks.
func TableSet(tables []string) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Without returns tables minus every name in exclude.
func Without(tables []string, exclude ...string) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if !slices.Contains(exclude, t) {
			out = append(out, t)
		}
	}
	return out
}

// Intersect returns the tables present in both lists, in the order of a.
func Intersect(a, b []string) []string {
	out := make([]string, 0, len(a))
	for _, t := range a {
		if slices.Contains(b, t) {
			out = append(out, t)
		}
	}
	return out
}

// IsSystemLog reports whether table is migration bookkeeping, by suffix.
func IsSystemLog(table string, suffixes []string) bool {
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(table, s) {
			return true
		}
	}
	return false
}

// WithoutSystemLogs drops migration bookkeeping tables.
func WithoutSystemLogs(tables []string, suffixes []string) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if !IsSystemLog(t, suffixes) {
			out = append(out, t)
		}
	}
	return out
}

// SplitList parses a comma-separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AllConnections stands for every active connection in manual targets and
// in force/skip lists.
const AllConnections = "*"

// ExpandAll replaces AllConnections in names with the active set, keeping
// order and dropping duplicates.
func ExpandAll(names, active []string) []string {
	if !slices.Contains(names, AllConnections) {
		return names
	}
	out := make([]string, 0, len(names)+len(active))
	for _, n := range names {
		if n == AllConnections {
			out = append(out, active...)
			continue
		}
		out = append(out, n)
	}
	seen := make(map[string]bool, len(out))
	return slices.DeleteFunc(out, func(n string) bool {
		if seen[n] {
			return true
		}
		seen[n] = true
		return false
	})
}
