package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateItemName validates an entity name for safety and correctness.
// Entity names identify clusters, channels, frames, PDUs, signals and ECUs,
// and double as reference keys throughout a topology.
//
// The validation rules follow identifier conventions:
//   - No empty names
//   - Must start with a letter
//   - Only letters, digits and underscores
//   - Maximum length of 128 characters
func ValidateItemName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidName, "name cannot be empty")
	}

	if len(name) > 128 {
		return New(ErrCodeInvalidName, "name too long (max 128 characters)")
	}

	if !itemNameRegex.MatchString(name) {
		return New(ErrCodeInvalidName, "invalid name: %q (must start with a letter and contain only letters, digits and underscores)", name)
	}

	return nil
}

// itemNameRegex matches valid entity names.
var itemNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ValidateManifestFilename validates a manifest filename for safety.
// It ensures the filename is a simple basename without path components.
func ValidateManifestFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidManifest, "manifest filename cannot be empty")
	}

	// Must be a simple filename, not a path
	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidManifest, "manifest filename cannot contain path separators")
	}

	// Check for control characters and null bytes
	for _, r := range filename {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidManifest, "manifest filename contains invalid control characters")
		}
	}

	return nil
}
