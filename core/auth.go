package core

// LoginResult is returned to clients after a successful login.
type LoginResult struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	FullName string  `json:"fullName"`
	Role     *string `json:"role"`
	Token    string  `json:"token"`
}

// TokenVerifier resolves a bearer token to the account id it was issued for.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}
