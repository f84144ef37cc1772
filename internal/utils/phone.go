package utils

import (
	"regexp"
	"strings"
)

var nonDigitRe = regexp.MustCompile(`\D`)

// ValidPhone reports whether the input contains exactly 10 digits once all
// non-digit characters are stripped.
func ValidPhone(phone string) bool {
	return len(nonDigitRe.ReplaceAllString(phone, "")) == 10
}

// FormatPhone normalizes a 10-digit phone number as NNN.NNN.NNNN. Inputs
// that are not 10 digits come back unchanged.
func FormatPhone(phone string) string {
	digits := nonDigitRe.ReplaceAllString(phone, "")
	if len(digits) != 10 {
		return phone
	}
	return strings.Join([]string{digits[:3], digits[3:6], digits[6:]}, ".")
}
