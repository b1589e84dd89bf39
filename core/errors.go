package core

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials is returned when username/password is wrong or unknown.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTooManyAttempts is returned while a user name is locked out after repeated failures.
	ErrTooManyAttempts = errors.New("too many failed login attempts, try again later")
	// ErrAccountNotFound is returned when no account has the requested id or name.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateUserName is raised by stores on a unique violation of the user name.
	ErrDuplicateUserName = errors.New("user name already taken")
)

// Validation issue codes.
const (
	CodeDuplicateUserName               = "DuplicateUserName"
	CodeInvalidUserName                 = "InvalidUserName"
	CodePasswordTooShort                = "PasswordTooShort"
	CodePasswordTooLong                 = "PasswordTooLong"
	CodePasswordRequiresDigit           = "PasswordRequiresDigit"
	CodePasswordRequiresLower           = "PasswordRequiresLower"
	CodePasswordRequiresUpper           = "PasswordRequiresUpper"
	CodePasswordRequiresNonAlphanumeric = "PasswordRequiresNonAlphanumeric"
)

// ValidationIssue is one rejected constraint.
type ValidationIssue struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ValidationError collects every constraint an input violated.
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Description)
	}
	return strings.Join(parts, " ")
}

// Has reports whether the error contains an issue with the given code.
func (e *ValidationError) Has(code string) bool {
	for _, is := range e.Issues {
		if is.Code == code {
			return true
		}
	}
	return false
}

func duplicateUserNameError(userName string) *ValidationError {
	return &ValidationError{Issues: []ValidationIssue{{
		Code:        CodeDuplicateUserName,
		Description: "User name '" + userName + "' is already taken.",
	}}}
}

// AppError wraps a store failure that is not a domain condition.
type AppError struct {
	Op  string
	Err error
}

func (e *AppError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

func appError(op string, err error) error {
	return &AppError{Op: op, Err: err}
}
