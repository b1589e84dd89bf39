package core

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

const userNameAllowedChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._@+"

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost  int
	dummy []byte
}

// NewPasswordHasher precomputes a dummy hash so lookups of unknown users spend the
// same work as a real comparison.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("account-api-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &PasswordHasher{cost: cost, dummy: dummy}, nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. Malformed hashes never match.
func (h *PasswordHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Burn performs a comparison against the dummy hash and discards the result.
func (h *PasswordHasher) Burn(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}

// PasswordPolicy mirrors the usual identity-store defaults.
type PasswordPolicy struct {
	MinLength              int
	RequireDigit           bool
	RequireLower           bool
	RequireUpper           bool
	RequireNonAlphanumeric bool
}

// DefaultPasswordPolicy requires every character class and the given minimum length.
func DefaultPasswordPolicy(minLength int) PasswordPolicy {
	return PasswordPolicy{
		MinLength:              minLength,
		RequireDigit:           true,
		RequireLower:           true,
		RequireUpper:           true,
		RequireNonAlphanumeric: true,
	}
}

// Check returns one issue per violated rule; nil means the password is acceptable.
func (p PasswordPolicy) Check(password string) []ValidationIssue {
	var (
		issues                                 []ValidationIssue
		hasDigit, hasLower, hasUpper, hasOther bool
	)
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		default:
			hasOther = true
		}
	}
	if len([]rune(password)) < p.MinLength {
		issues = append(issues, ValidationIssue{CodePasswordTooShort, fmt.Sprintf("Passwords must be at least %d characters.", p.MinLength)})
	}
	if len(password) > MaxPasswordBytes {
		issues = append(issues, ValidationIssue{CodePasswordTooLong, fmt.Sprintf("Passwords must be at most %d bytes.", MaxPasswordBytes)})
	}
	if p.RequireNonAlphanumeric && !hasOther {
		issues = append(issues, ValidationIssue{CodePasswordRequiresNonAlphanumeric, "Passwords must have at least one non alphanumeric character."})
	}
	if p.RequireDigit && !hasDigit {
		issues = append(issues, ValidationIssue{CodePasswordRequiresDigit, "Passwords must have at least one digit ('0'-'9')."})
	}
	if p.RequireLower && !hasLower {
		issues = append(issues, ValidationIssue{CodePasswordRequiresLower, "Passwords must have at least one lowercase ('a'-'z')."})
	}
	if p.RequireUpper && !hasUpper {
		issues = append(issues, ValidationIssue{CodePasswordRequiresUpper, "Passwords must have at least one uppercase ('A'-'Z')."})
	}
	return issues
}

// CheckUserName rejects empty names and characters outside the allowed set.
func CheckUserName(userName string) []ValidationIssue {
	if strings.TrimSpace(userName) == "" || strings.IndexFunc(userName, func(r rune) bool {
		return !strings.ContainsRune(userNameAllowedChars, r)
	}) >= 0 {
		return []ValidationIssue{{CodeInvalidUserName, fmt.Sprintf("User name '%s' is invalid, can only contain letters or digits.", userName)}}
	}
	return nil
}

// GeneratePassword returns a random password of the given length that satisfies
// DefaultPasswordPolicy for any minimum up to length.
func GeneratePassword(length int) (string, error) {
	if length < 4 {
		return "", errors.New("password length must be at least 4")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(raw)[:length-4]
	return body + "aZ9!", nil
}
