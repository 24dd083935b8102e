package daraja

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`[^0-9]`)

// NormalizePhone converts a Kenyan phone number to the 2547XXXXXXXX /
// 2541XXXXXXXX format Safaricom requires. Accepted inputs: 07XXXXXXXX,
// 01XXXXXXXX, 7XXXXXXXX, 1XXXXXXXX, 2547XXXXXXXX and the same with a
// leading + or separators.
func NormalizePhone(raw string) (string, error) {
	digits := nonDigits.ReplaceAllString(raw, "")

	switch {
	case strings.HasPrefix(digits, "254"):
		// already international
	case strings.HasPrefix(digits, "0"):
		digits = "254" + digits[1:]
	case strings.HasPrefix(digits, "7"), strings.HasPrefix(digits, "1"):
		digits = "254" + digits
	default:
		return "", ErrInvalidPhoneNumber
	}

	if len(digits) != 12 {
		return "", ErrInvalidPhoneNumber
	}

	return digits, nil
}
