// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
	"unicode"
)

// NormalizeIdentifier case-folds an identifying value and strips separators
// and whitespace so that "asd-123", "ASD 123" and "Asd.123" compare equal.
//
// Example:
//
//	NormalizeIdentifier(" ab-12/34 ")
//	// Returns: "AB1234"
func NormalizeIdentifier(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// SplitList splits a comma separated list, trimming whitespace and dropping
// empty and repeated elements. Order is preserved.
//
// Example:
//
//	SplitList(" kafka-1:9092, ,kafka-2:9092,kafka-1:9092")
//	// Returns: []string{"kafka-1:9092", "kafka-2:9092"}
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	seen := make(map[string]struct{}, len(parts))
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
