package parser

import (
	"strconv"
	"strings"
)

// NormalizePrice turns a free-form price string into a non-negative amount.
// It returns 0 for anything it cannot parse.
func NormalizePrice(text string) float64 {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return 0
	}

	lastComma := strings.LastIndex(clean, ",")
	lastDot := strings.LastIndex(clean, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = replaceLast(clean, ",", ".")
			clean = strings.ReplaceAll(clean, ",", "")
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		if len(clean)-lastComma-1 <= 3 {
			clean = replaceLast(clean, ",", ".")
		}
		clean = strings.ReplaceAll(clean, ",", "")
	}

	value, err := strconv.ParseFloat(clean, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func replaceLast(s, old, new string) string {
	i := strings.LastIndex(s, old)
	if i < 0 {
		return s
	}
	return s[:i] + new + s[i+len(old):]
}
