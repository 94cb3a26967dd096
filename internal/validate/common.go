// Package validate implements the per-dialect request validators (spec
// §4.1): strict shape and value-range checks that run before any
// translation, returning a gatewayerr.Validation error with a non-empty
// field path on any violation.
package validate

import (
	"fmt"
	"strings"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
)

// MaxBodyBytes is the cross-cutting maximum request body size enforced
// before JSON decoding (spec §4.1).
const MaxBodyBytes = 10 * 1024 * 1024

// CheckBodySize is the single cross-cutting check shared by every dialect.
func CheckBodySize(body []byte) error {
	if len(body) > MaxBodyBytes {
		return gatewayerr.NewValidation("body", "request body exceeds the maximum allowed size")
	}

	return nil
}

// fieldPath joins a mix of string and int segments into a dotted/indexed
// JSON path for a validation error's Field (e.g. "messages[0].role").
func fieldPath(segments ...any) string {
	var b strings.Builder

	for i, seg := range segments {
		switch v := seg.(type) {
		case int:
			fmt.Fprintf(&b, "[%d]", v)
		default:
			if i > 0 {
				b.WriteByte('.')
			}

			fmt.Fprintf(&b, "%v", v)
		}
	}

	return b.String()
}
