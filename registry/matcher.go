package registry

import (
	"regexp"
	"slices"
	"strings"
)

// never matches anything: no position is both a word boundary and not one.
const never = `\b\B`

// BuildMatcher returns a pattern matching any of names. The alternatives
// are tried in descending string order, so when one name is a prefix of
// another ("app", "appgroup") the longer one is attempted first.
func BuildMatcher(names []string) *regexp.Regexp {
	sorted := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			sorted = append(sorted, n)
		}
	}
	if len(sorted) == 0 {
		return regexp.MustCompile(never)
	}
	slices.Sort(sorted)
	slices.Reverse(sorted)
	sorted = slices.Compact(sorted)
	quoted := make([]string, len(sorted))
	for i, n := range sorted {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile("(?:" + strings.Join(quoted, "|") + ")")
}

// TableMatcher matches any registered table or def-prefix name.
func (r *Registry) TableMatcher() *regexp.Regexp {
	return BuildMatcher(r.AllTables())
}

// PluralMatcher matches any registered plural name.
func (r *Registry) PluralMatcher() *regexp.Regexp {
	return BuildMatcher(r.AllPlurals())
}
