// utils/validation.go
package utils

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid phone number")

var (
	nonPhoneChars = regexp.MustCompile(`[^\d+]`)
	// + prefix followed by up to 15 digits, no leading zero
	e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	countryCode = regexp.MustCompile(`^\+[1-9]\d{0,2}$`)
)

// NormalizePhone rewrites raw into E.164 using countryCode (e.g. "+40") for
// national numbers. A leading 00 is treated as the international prefix and a
// single leading 0 as the national trunk prefix.
func NormalizePhone(raw, countryCode string) (string, error) {
	cleaned := nonPhoneChars.ReplaceAllString(raw, "")
	if strings.Trim(cleaned, "+") == "" {
		return "", ErrInvalidPhone
	}

	switch {
	case strings.HasPrefix(cleaned, "00"):
		cleaned = "+" + cleaned[2:]
	case strings.HasPrefix(cleaned, "0"):
		cleaned = countryCode + cleaned[1:]
	case !strings.HasPrefix(cleaned, "+"):
		cleaned = countryCode + cleaned
	}

	if !e164Pattern.MatchString(cleaned) {
		return "", ErrInvalidPhone
	}
	return cleaned, nil
}

// ValidCountryCode reports whether code looks like "+40" or "+1".
func ValidCountryCode(code string) bool {
	return countryCode.MatchString(code)
}

// HasPhone reports whether phone carries anything besides whitespace.
func HasPhone(phone string) bool {
	return strings.TrimSpace(phone) != ""
}
