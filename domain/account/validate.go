package account

import (
	"errors"
	"regexp"
	"strings"
)

var (
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	subjectPattern = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)
)

// Validation errors.
var (
	ErrNameRequired   = errors.New("name is required")
	ErrEmailRequired  = errors.New("email is required")
	ErrEmailInvalid   = errors.New("invalid email format")
	ErrSubjectMissing = errors.New("symbol is required")
	ErrSubjectInvalid = errors.New("invalid symbol format")
)

// ValidKeyFormat reports whether rawKey is exactly KeyLength lowercase hex
// characters. This is a PURE function and never touches storage.
func ValidKeyFormat(rawKey string) bool {
	if len(rawKey) != KeyLength {
		return false
	}
	for i := 0; i < len(rawKey); i++ {
		c := rawKey[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// NormalizeEmail validates and lower-cases a contact address.
// This is a PURE function.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return "", ErrEmailInvalid
	}
	return strings.ToLower(email), nil
}

// NormalizeName trims a display name and rejects empty names.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	return name, nil
}

// NormalizeSubject validates a request subject (ticker symbol) and
// upper-cases it. This is a PURE function.
func NormalizeSubject(subject string) (string, error) {
	if subject == "" {
		return "", ErrSubjectMissing
	}
	if !subjectPattern.MatchString(subject) {
		return "", ErrSubjectInvalid
	}
	return strings.ToUpper(subject), nil
}
