package services

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the service layer. Controllers map these onto
// HTTP statuses; everything else bubbles up as an internal error.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)

// MemberConflictError reports which candidate entries of a batch member
// addition collided with existing members or pending invites. The whole
// batch is rejected; nothing was written.
type MemberConflictError struct {
	Conflicts []string
}

func (e *MemberConflictError) Error() string {
	return fmt.Sprintf("already in project: %s", strings.Join(e.Conflicts, ", "))
}

func (e *MemberConflictError) Unwrap() error {
	return ErrConflict
}
