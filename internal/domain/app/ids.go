package app

import (
	"regexp"
	"strings"
)

// IDPattern is the accepted shape of an application id.
var IDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateID checks that id is usable as a catalog and state key.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("application id must not be empty", nil)
	}
	if !IDPattern.MatchString(id) {
		return NewValidationError("application id contains disallowed characters", map[string]interface{}{
			"app_id": id,
		})
	}
	return nil
}

// ValidateIDs checks every id and rejects duplicates.
func ValidateIDs(ids []string) error {
	if len(ids) == 0 {
		return NewValidationError("at least one application id is required", nil)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if err := ValidateID(id); err != nil {
			return err
		}
		if _, dup := seen[id]; dup {
			return NewValidationError("duplicate application id", map[string]interface{}{"app_id": id})
		}
		seen[id] = struct{}{}
	}
	return nil
}
