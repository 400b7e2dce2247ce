package jcl

import (
	"fmt"
	"regexp"
	"strings"

	"zgate/internal/connection"
)

const (
	maxDatasetName = 44
	maxQualifiers  = 22
	maxNameLen     = 8
)

var (
	qualifierRe = regexp.MustCompile(`^[A-Z#$@][A-Z0-9#$@-]*$`)
	memberRe    = regexp.MustCompile(`^[A-Z#$@][A-Z0-9#$@]*$`)
)

// ValidateDatasetName checks qualifier count, qualifier length and the
// allowed character set of a fully qualified dataset name.
func ValidateDatasetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: dataset name cannot be empty", connection.ErrInvalidName)
	}
	if len(name) > maxDatasetName {
		return fmt.Errorf("%w: dataset name %q exceeds %d characters", connection.ErrInvalidName, name, maxDatasetName)
	}

	parts := strings.Split(name, ".")
	if len(parts) > maxQualifiers {
		return fmt.Errorf("%w: dataset name has too many qualifiers (max %d): %d", connection.ErrInvalidName, maxQualifiers, len(parts))
	}
	for _, part := range parts {
		if len(part) == 0 {
			return fmt.Errorf("%w: dataset name contains an empty qualifier", connection.ErrInvalidName)
		}
		if len(part) > maxNameLen {
			return fmt.Errorf("%w: qualifier %q exceeds %d characters", connection.ErrInvalidName, part, maxNameLen)
		}
		if !qualifierRe.MatchString(part) {
			return fmt.Errorf("%w: qualifier %q contains invalid characters", connection.ErrInvalidName, part)
		}
	}
	return nil
}

// ValidateMemberName checks a PDS member name. Job names follow the same rule.
func ValidateMemberName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: member name cannot be empty", connection.ErrInvalidName)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: member name %q exceeds %d characters", connection.ErrInvalidName, name, maxNameLen)
	}
	if !memberRe.MatchString(name) {
		return fmt.Errorf("%w: member name %q contains invalid characters", connection.ErrInvalidName, name)
	}
	return nil
}

// Normalize trims surrounding quotes and upper-cases a dataset or member name.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 2 && name[0] == '\'' && name[len(name)-1] == '\'' {
		name = name[1 : len(name)-1]
	}
	return strings.ToUpper(name)
}

// MemberRef is the submit reference for a job stream stored in a member.
func MemberRef(dataset, member string) string {
	return fmt.Sprintf("//'%s(%s)'", dataset, member)
}
