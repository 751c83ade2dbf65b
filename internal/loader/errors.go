package loader

import (
	"fmt"
	"io/fs"
)

// errMissingDocument reports a required document that is absent.
func errMissingDocument(name string) error {
	return fmt.Errorf("%s: %w", name, fs.ErrNotExist)
}
