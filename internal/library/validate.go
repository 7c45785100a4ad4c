package library

import (
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	maxTitleLen  = 200
	maxAuthorLen = 100
	isbnLen      = 13
	patronIDLen  = 6
)

func isASCIIDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isValidISBN13(isbn string) bool { return isASCIIDigits(isbn, isbnLen) }

func isValidPatronID(id string) bool { return isASCIIDigits(id, patronIDLen) }

func tooLong(s string, limit int) bool { return utf8.RuneCountInString(s) > limit }

// foldCase lowercases without special casing so "ß" stays "ß", the same
// way SQL LOWER() treats it. A Caser keeps state, so one is made per call.
func foldCase(s string) string {
	return cases.Lower(language.Und).String(s)
}
