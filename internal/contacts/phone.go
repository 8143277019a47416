package contacts

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// NormalizePhone strips common formatting and reports whether what remains is
// structurally dialable: an optional leading '+' followed by 7-15 digits. A
// leading '+' must carry a known country calling code. It does not attempt
// country-specific E.164 normalization of national numbers.
func NormalizePhone(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", false
		}
	}

	digits := phonenumbers.NormalizeDigitsOnly(s)
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", false
	}
	if !strings.HasPrefix(s, "+") {
		return digits, true
	}
	if _, err := phonenumbers.Parse(s, ""); err != nil {
		return "", false
	}
	return "+" + digits, true
}

// phoneKey is the dedup key for a phone: digits only, so "+1 555..." and
// "1555..." collapse.
func phoneKey(normalized string) string {
	return strings.TrimPrefix(normalized, "+")
}

// PhoneKey exposes the dedup key for callers that compare against stored call rows.
func PhoneKey(raw string) string {
	n, ok := NormalizePhone(raw)
	if !ok {
		return ""
	}
	return phoneKey(n)
}
