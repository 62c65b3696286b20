package utils

import (
	"fmt"
	"regexp"
)

var (
	logicalNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	controlRegex     = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// MaxRecordIDLength bounds record ids accepted from the outside
const MaxRecordIDLength = 128

// ValidateLogicalName validates an entity or attribute logical name
func ValidateLogicalName(name string) error {
	if !logicalNameRegex.MatchString(name) {
		return fmt.Errorf("invalid logical name: %q", name)
	}
	return nil
}

// ValidateRecordID validates a record id. Empty ids are allowed; the store assigns one.
func ValidateRecordID(id string) error {
	if len(id) > MaxRecordIDLength {
		return fmt.Errorf("record id exceeds %d characters", MaxRecordIDLength)
	}
	if controlRegex.MatchString(id) {
		return fmt.Errorf("record id contains control characters: %q", id)
	}
	return nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}
