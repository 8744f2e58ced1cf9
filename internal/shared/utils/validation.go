// Package utils holds small shared helpers for input validation on the
// query surface.
package utils

import (
	"fmt"
	"regexp"

	"github.com/spanlight/spanlight/internal/shared/id"
)

// ULIDs use Crockford base32 without I, L, O, U.
const ulidBody = `[0-9A-HJKMNP-TV-Z]{26}`

var (
	traceIDPattern = regexp.MustCompile(`^` + id.TracePrefix + `_` + ulidBody + `$`)
	spanIDPattern  = regexp.MustCompile(`^` + id.SpanPrefix + `_` + ulidBody + `$`)
)

// ValidateTraceID checks that a caller-supplied trace ID is well formed
// before it is used as a lookup key.
func ValidateTraceID(raw string) error {
	if raw == "" {
		return fmt.Errorf("trace id is required")
	}
	if !traceIDPattern.MatchString(raw) {
		return fmt.Errorf("malformed trace id %q", raw)
	}
	return nil
}

// ValidateSpanID checks that a caller-supplied span ID is well formed.
func ValidateSpanID(raw string) error {
	if raw == "" {
		return fmt.Errorf("span id is required")
	}
	if !spanIDPattern.MatchString(raw) {
		return fmt.Errorf("malformed span id %q", raw)
	}
	return nil
}
