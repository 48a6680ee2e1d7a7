// Package utils provides utility functions for the application.
package utils

import (
	"errors"
	"strings"
)

// ErrPhoneTooShort is returned when a phone number has fewer than
// MinPhoneDigits digits after stripping formatting characters.
var ErrPhoneTooShort = errors.New("phone number has too few digits")

// NormalizePhone canonicalizes a recipient phone number: every non-digit is
// stripped, numbers shorter than MinPhoneDigits are rejected, and bare
// 10-digit numbers get the default country code prepended.
//
// Every place a phone number enters the system (contact import, send,
// webhook correlation) must pass through this function so keys match.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) < MinPhoneDigits {
		return "", ErrPhoneTooShort
	}
	if len(digits) == MinPhoneDigits {
		return DefaultCountryCode + digits, nil
	}
	return digits, nil
}
