package utils

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned for numbers that cannot be normalized.
var ErrInvalidPhone = errors.New("utils: invalid phone number")

// NormalizePhone converts a phone number to E.164. Numbers without a leading
// + get the default country code prepended. Formatting characters are
// stripped.
func NormalizePhone(raw, defaultCountryCode string) (string, error) {
	raw = strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(raw, "+")

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if !strings.ContainsRune("+-. ()", r) {
			return "", ErrInvalidPhone
		}
	}
	number := digits.String()
	if number == "" {
		return "", ErrInvalidPhone
	}

	if !hasPlus {
		cc := strings.TrimPrefix(strings.TrimSpace(defaultCountryCode), "+")
		number = cc + strings.TrimPrefix(number, "0")
	}
	if len(number) < 7 || len(number) > 15 {
		return "", ErrInvalidPhone
	}
	return "+" + number, nil
}
