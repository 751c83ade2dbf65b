// Package validation provides input validation that guards the template
// store against path traversal through template identifiers.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// MaxTemplateIDLength bounds identifiers accepted by ValidateTemplateID.
const MaxTemplateIDLength = 128

var (
	ErrEmptyID       = errors.New("template id cannot be empty")
	ErrPathTraversal = errors.New("template id contains path traversal")
	ErrPathSeparator = errors.New("template id contains a path separator")
)

// ValidateTemplateID checks that id names a single directory directly under
// the store root. It performs no I/O.
func ValidateTemplateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}

	if id == "." || strings.Contains(id, "..") {
		return ErrPathTraversal
	}

	if strings.ContainsAny(id, `/\`) {
		return ErrPathSeparator
	}

	if strings.ContainsRune(id, 0) {
		return fmt.Errorf("template id contains a NUL byte")
	}

	if len(id) > MaxTemplateIDLength {
		return fmt.Errorf("template id too long (max %d characters)", MaxTemplateIDLength)
	}

	return nil
}

// ValidateFileName checks a configured document file name. Like an id it must
// stay within its template directory.
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}

	if name == "." || strings.Contains(name, "..") {
		return fmt.Errorf("file name contains path traversal: %s", name)
	}

	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("file name contains a path separator: %s", name)
	}

	return nil
}
