package app

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// VersionsMatch compares an installed version with a catalog version. Versions
// that parse are compared numerically so "1.0" matches "1.0.0"; anything else
// falls back to a case-insensitive string comparison.
func VersionsMatch(installed, catalog string) bool {
	installed = strings.TrimSpace(installed)
	catalog = strings.TrimSpace(catalog)
	if installed == "" || catalog == "" {
		return false
	}

	a, errA := goversion.NewVersion(installed)
	b, errB := goversion.NewVersion(catalog)
	if errA == nil && errB == nil {
		return a.Equal(b)
	}
	return strings.EqualFold(installed, catalog)
}

// IsNewer reports whether candidate is a strictly newer version than current.
// Unparseable versions are never considered newer.
func IsNewer(candidate, current string) bool {
	c, err := goversion.NewVersion(strings.TrimSpace(candidate))
	if err != nil {
		return false
	}
	cur, err := goversion.NewVersion(strings.TrimSpace(current))
	if err != nil {
		return false
	}
	return c.GreaterThan(cur)
}
