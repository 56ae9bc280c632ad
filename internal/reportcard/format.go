package reportcard

import (
	"fmt"
	"strings"
	"time"
)

const (
	identifierGroup = 4
	dateInLayout    = "2006-01-02"
	dateOutLayout   = "02/01/2006"
)

// FormatIdentifier inserts a space after every four characters and trims
// the trailing one: "123456789012" becomes "1234 5678 9012".
func FormatIdentifier(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && i%identifierGroup == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// CleanIdentifier strips whitespace from s and checks that what remains is
// a non-empty run of ASCII digits.
func CleanIdentifier(s string) (string, error) {
	cleaned := strings.Join(strings.Fields(s), "")
	if cleaned == "" {
		return "", fmt.Errorf("%w: identifier is empty", ErrInvalidInput)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: identifier must contain only digits", ErrInvalidInput)
		}
	}
	return cleaned, nil
}

// ReorderDate turns a YYYY-MM-DD date into DD/MM/YYYY.
func ReorderDate(s string) (string, error) {
	d, err := time.Parse(dateInLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: date of birth %q is not YYYY-MM-DD", ErrInvalidInput, s)
	}
	return d.Format(dateOutLayout), nil
}
