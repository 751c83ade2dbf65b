package loader

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/conneroisu/anchorplay/internal/types"
)

// Fingerprint returns a BLAKE3 digest of the template's JSON form. Two loads
// of unchanged store content produce the same fingerprint.
func Fingerprint(t *types.Template) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encoding template %s: %w", t.ID, err)
	}

	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
