// Package phone validates and normalizes North American phone numbers.
package phone

import "strings"

// InvalidMessage is shown to the customer when a number is rejected.
const InvalidMessage = "That phone number doesn't look right. Please send a 10-digit number, for example 555-123-4567."

// Result is the outcome of Validate. Normalized is only set when Valid.
type Result struct {
	Valid      bool
	Normalized string
	Message    string
}

// Validate strips every non-digit and accepts exactly 10 digits, or 11
// digits with a leading country code 1 (which is dropped).
func Validate(raw string) Result {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10:
		return Result{Valid: true, Normalized: digits}
	case len(digits) == 11 && digits[0] == '1':
		return Result{Valid: true, Normalized: digits[1:]}
	default:
		return Result{Message: InvalidMessage}
	}
}
