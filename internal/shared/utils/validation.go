package utils

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// Limits on project payloads accepted over the API
const (
	MaxFileSize    = 1 * 1024 * 1024
	MaxProjectSize = 8 * 1024 * 1024
	MaxFileCount   = 500
	MaxPathLength  = 512
	MaxTitleLength = 256
	MaxIDLength    = 128
)

// SafeIDPattern allows alphanumeric, hyphens, underscores
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateID validates an ID field
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}
	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}
	return nil
}

// ValidatePath checks that a file path is project-relative and stays
// inside the project
func ValidatePath(p string) error {
	if err := ValidateString(p, "path", 1, MaxPathLength, true); err != nil {
		return err
	}
	normalized := strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(normalized, "/") {
		return fmt.Errorf("path %q must be project-relative", p)
	}
	if cleaned := path.Clean(normalized); cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("path %q escapes the project", p)
	}
	return nil
}

// ValidateFiles checks a file set against the payload limits. Duplicate
// paths are allowed; the build resolves them by order.
func ValidateFiles(files []types.SourceFile) error {
	if len(files) > MaxFileCount {
		return fmt.Errorf("project has %d files, maximum is %d", len(files), MaxFileCount)
	}
	total := 0
	for _, f := range files {
		if err := ValidatePath(f.Path); err != nil {
			return err
		}
		if f.Size() > MaxFileSize {
			return fmt.Errorf("file %q is %d bytes, maximum is %d", f.Path, f.Size(), MaxFileSize)
		}
		if !utf8.ValidString(f.Content) {
			return fmt.Errorf("file %q is not valid UTF-8", f.Path)
		}
		total += f.Size()
	}
	if total > MaxProjectSize {
		return fmt.Errorf("project is %d bytes, maximum is %d", total, MaxProjectSize)
	}
	return nil
}

// ValidateProject validates a project snapshot received from a client
func ValidateProject(p *types.Project) error {
	if p == nil {
		return fmt.Errorf("project is required")
	}
	if err := ValidateID(p.ID, "id", true); err != nil {
		return err
	}
	if err := ValidateString(p.Title, "title", 0, MaxTitleLength, false); err != nil {
		return err
	}
	return ValidateFiles(p.Files)
}
