package curriculum

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeName returns the comparison key for subject and task names:
// NFKC-normalized, case-folded, with runs of whitespace collapsed to one space.
func NormalizeName(name string) string {
	fields := strings.Fields(norm.NFKC.String(name))
	if len(fields) == 0 {
		return ""
	}
	return folder.String(strings.Join(fields, " "))
}

// CleanName trims and collapses whitespace but keeps the original casing.
func CleanName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// SameName reports whether two names collide under NormalizeName.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

// FirstDuplicate returns the first name whose normalized form was already seen.
func FirstDuplicate(names []string) (string, bool) {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		key := NormalizeName(n)
		if _, ok := seen[key]; ok {
			return n, true
		}
		seen[key] = struct{}{}
	}
	return "", false
}
