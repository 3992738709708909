package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Text trims user supplied free text (message content, contact names).
// The second result reports whether anything is left after trimming.
func Text(s string) (string, bool) {
	t := strings.TrimSpace(s)
	return t, t != ""
}

// OptionalText is Text for partial updates: a nil pointer means "not provided"
// and is reported as ok.
func OptionalText(s *string) (*string, bool) {
	if s == nil {
		return nil, true
	}
	t, ok := Text(*s)
	if !ok {
		return nil, false
	}
	return &t, true
}
