//go:build property
// +build property

package validation

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestTemplateIDProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ids with a separator are rejected", prop.ForAll(
		func(prefix, suffix, sep string) bool {
			return ValidateTemplateID(prefix+sep+suffix) != nil
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.OneConstOf("/", `\`, ".."),
	))

	properties.Property("slug ids are accepted", prop.ForAll(
		func(id string) bool {
			return ValidateTemplateID(id) == nil
		},
		gen.RegexMatch(`^[a-z][a-z0-9-]{0,40}$`),
	))

	properties.Property("accepted ids never escape the store root", prop.ForAll(
		func(id string) bool {
			if ValidateTemplateID(id) != nil {
				return true
			}
			return id != "." && !strings.Contains(id, "..") && !strings.ContainsAny(id, `/\`)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
