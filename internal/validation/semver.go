// Package validation checks the version strings recorded in the schema version
// ledger.
package validation

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-version"
)

// schemaVersionPattern requires all three numeric components.
var schemaVersionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

// ValidateSemver validates that a version string is valid semantic versioning
func ValidateSemver(versionStr string) error {
	_, err := version.NewVersion(versionStr)
	if err != nil {
		return fmt.Errorf("invalid semantic version: %w", err)
	}
	return nil
}

// CompareSemver compares two semantic versions
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareSemver(v1Str, v2Str string) (int, error) {
	v1, err := version.NewVersion(v1Str)
	if err != nil {
		return 0, fmt.Errorf("invalid version v1: %w", err)
	}

	v2, err := version.NewVersion(v2Str)
	if err != nil {
		return 0, fmt.Errorf("invalid version v2: %w", err)
	}

	return v1.Compare(v2), nil
}

// ValidateSchemaVersion validates a schema version string. Unlike ValidateSemver it
// rejects the short forms "1" and "1.2" and a leading "v".
func ValidateSchemaVersion(versionStr string) error {
	if !schemaVersionPattern.MatchString(versionStr) {
		return fmt.Errorf("invalid schema version %q: expected MAJOR.MINOR.PATCH", versionStr)
	}
	return ValidateSemver(versionStr)
}

// LatestVersion returns the highest of versions, or "" for an empty list.
func LatestVersion(versions []string) (string, error) {
	var latest *version.Version
	for _, s := range versions {
		v, err := version.NewVersion(s)
		if err != nil {
			return "", fmt.Errorf("invalid version %q: %w", s, err)
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.Original(), nil
}
