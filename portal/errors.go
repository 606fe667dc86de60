package portal

import (
	"errors"
	"fmt"
)

// Failures returned by the core. Callers match them with errors.Is.
var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotApproved        = errors.New("account not approved by admin yet")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNotAssigned        = errors.New("task is not assigned to you")
	ErrAlreadyCompleted   = errors.New("task already completed")
	ErrEmptyAssignment    = errors.New("task needs a title and at least one assignee")
	ErrEmptyComment       = errors.New("comment text is empty")
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAdminExists        = errors.New("admin already exists")
	ErrIdentityUnverified = errors.New("identity could not be verified")

	// ErrStorage wraps every failure of the underlying store.
	ErrStorage = errors.New("storage failure")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrDuplicateUsername, "DuplicateUsername"},
	{ErrDuplicateEmail, "DuplicateEmail"},
	{ErrInvalidCredentials, "InvalidCredentials"},
	{ErrNotApproved, "NotApproved"},
	{ErrForbidden, "Forbidden"},
	{ErrInvalidTransition, "InvalidTransition"},
	{ErrNotAssigned, "NotAssigned"},
	{ErrAlreadyCompleted, "AlreadyCompleted"},
	{ErrEmptyAssignment, "EmptyAssignment"},
	{ErrEmptyComment, "EmptyComment"},
	{ErrInvalidPhoneFormat, "InvalidPhoneFormat"},
	{ErrNotFound, "NotFound"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrAdminExists, "AdminExists"},
	{ErrIdentityUnverified, "IdentityUnverified"},
	{ErrStorage, "StorageFailure"},
}

// Code returns the stable tag of a core failure, or "Internal" for anything else.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}

// StorageError wraps a store failure so that it matches ErrStorage.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
