package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var countRe = regexp.MustCompile(`\d+`)

// ParseBRLNumber converts a Brazilian-formatted money or measure string to a
// number: "R$ 350.000,00" yields 350000. Tokens without digits, such as
// "Consulte-nos", yield nil rather than an error.
func ParseBRLNumber(s string) *float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if !strings.ContainsAny(cleaned, "0123456789") {
		return nil
	}

	// Dots are digit grouping in pt-BR; the last comma is the decimal mark.
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	if i := strings.LastIndex(cleaned, ","); i >= 0 {
		cleaned = strings.ReplaceAll(cleaned[:i], ",", "") + "." + cleaned[i+1:]
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return nil
	}
	return &value
}

// ParseCount extracts the first non-negative integer from a string, or nil.
func ParseCount(s string) *int {
	m := countRe.FindString(s)
	if m == "" {
		return nil
	}
	value, err := strconv.Atoi(m)
	if err != nil || value < 0 {
		return nil
	}
	return &value
}

// NormalizeText trims and collapses internal whitespace.
func NormalizeText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
