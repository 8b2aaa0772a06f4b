package service

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FormatName lowercases, collapses whitespace and capitalises the first letter.
func FormatName(name string) string {
	name = strings.Join(strings.Fields(strings.ToLower(name)), " ")
	if name == "" {
		return name
	}

	first, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(first)) + name[size:]
}
