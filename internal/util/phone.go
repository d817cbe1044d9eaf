package util

import (
	"regexp"
	"strings"
)

var nonDialChars = regexp.MustCompile(`[^\d+]+`)

// NormalizePhone turns user input into the digits-only international form the
// WhatsApp Cloud API expects (no leading plus). Numbers without an
// international prefix get defaultCountry prepended.
func NormalizePhone(raw, defaultCountry string) string {
	s := nonDialChars.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasPrefix(s, "00"):
		s = s[2:]
	default:
		s = strings.TrimLeft(s, "0")
		if defaultCountry != "" && !strings.HasPrefix(s, defaultCountry) {
			s = defaultCountry + s
		}
	}

	return strings.ReplaceAll(s, "+", "")
}
