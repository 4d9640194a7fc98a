package openapi

import (
	"regexp"
	"strings"
)

var wordSeparators = regexp.MustCompile(`[_\-\s]+`)

// labelFor turns a property name into sentence case: "ownerPhone" and
// "owner_phone" both become "Owner phone".
func labelFor(name string) string {
	var words []string
	for _, chunk := range wordSeparators.Split(name, -1) {
		words = append(words, splitCamel(chunk)...)
	}
	for i, word := range words {
		word = strings.ToLower(word)
		if i == 0 {
			word = strings.ToUpper(word[:1]) + word[1:]
		}
		words[i] = word
	}
	return strings.Join(words, " ")
}

func splitCamel(input string) []string {
	var (
		words []string
		start int
	)
	for i := 1; i < len(input); i++ {
		prev, r := input[i-1], input[i]
		if (isLower(prev) && isUpper(r)) || (isLetter(prev) && isDigit(r)) || (isDigit(prev) && isLetter(r)) {
			words = append(words, input[start:i])
			start = i
		}
	}
	if start < len(input) {
		words = append(words, input[start:])
	}
	return words
}

func isUpper(r byte) bool  { return r >= 'A' && r <= 'Z' }
func isLower(r byte) bool  { return r >= 'a' && r <= 'z' }
func isDigit(r byte) bool  { return r >= '0' && r <= '9' }
func isLetter(r byte) bool { return isUpper(r) || isLower(r) }
