package barcode

import (
	"strings"
	"unicode"
)

const eanLength = 13

// Candidates expands a raw scanned code into the ordered, de-duplicated list of
// strings to try against a product index.
func Candidates(raw string) []string {
	stripped := stripNonAlphanumeric(raw)
	list := []string{strings.ToLower(raw), strings.ToLower(stripped)}

	if isDigits(stripped) {
		trimmed := strings.TrimLeft(stripped, "0")
		list = append(list, trimmed)
		if len(stripped) < eanLength {
			list = append(list, strings.Repeat("0", eanLength-len(stripped))+stripped)
		}
	}
	return dedupe(list)
}

func stripNonAlphanumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
