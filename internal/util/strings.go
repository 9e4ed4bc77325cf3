package util

import (
	"slices"
	"strings"
)

// NormalizeList trims, drops blanks and deduplicates values case-insensitively,
// keeping the first spelling.
func NormalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

func ContainsFold(values []string, v string) bool {
	return slices.ContainsFunc(values, func(s string) bool { return strings.EqualFold(s, v) })
}

func RemoveFold(values []string, remove ...string) []string {
	return slices.DeleteFunc(slices.Clone(values), func(s string) bool {
		return ContainsFold(remove, s)
	})
}

func SplitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeList(strings.Split(s, ","))
}
