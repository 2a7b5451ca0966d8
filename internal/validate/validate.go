// Package validate holds the syntactic input checks shared by the ingestion
// and dispatch paths.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"SteadySend/internal/models"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Error describes a recipient record that failed the syntactic checks.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

// Email reports whether s looks like a well-formed address. This is a syntax
// check only; it never attempts deliverability verification.
func Email(s string) bool {
	return emailPattern.MatchString(s)
}

// Recipient checks the shape of an ingested record: a non-empty,
// syntactically valid Email field.
func Recipient(r models.RecipientRecord) error {
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return &Error{Reason: "recipient record missing Email field"}
	}
	if !Email(email) {
		return &Error{Reason: fmt.Sprintf("invalid recipient email format: %q", email)}
	}
	return nil
}
