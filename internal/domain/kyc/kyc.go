// Package kyc holds the identifier formats shared by loan and account
// applications. BVN and NIN values are opaque 11-digit strings.
package kyc

import (
	"regexp"
	"strings"
)

var (
	elevenDigits = regexp.MustCompile(`^[0-9]{11}$`)
	tenDigits    = regexp.MustCompile(`^[0-9]{10}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,14}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func ValidBVN(v string) bool { return elevenDigits.MatchString(strings.TrimSpace(v)) }

func ValidNIN(v string) bool { return elevenDigits.MatchString(strings.TrimSpace(v)) }

// ValidAccountNumber checks a NUBAN account number.
func ValidAccountNumber(v string) bool { return tenDigits.MatchString(strings.TrimSpace(v)) }

func ValidPhone(v string) bool {
	return phonePattern.MatchString(strings.ReplaceAll(strings.TrimSpace(v), " ", ""))
}

func ValidEmail(v string) bool { return emailPattern.MatchString(strings.TrimSpace(v)) }

// FieldError names the first invalid field of a submission.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

func Required(field, value string) *FieldError {
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: field, Message: "required"}
	}
	return nil
}
