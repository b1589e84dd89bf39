package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AccountService orchestrates registration, authentication and roster management
// over an AccountRepository.
type AccountService struct {
	accounts AccountRepository
	hasher   *PasswordHasher
	policy   PasswordPolicy
	tokens   *TokenIssuer
	throttle LoginThrottle
	log      *zap.Logger
	now      func() time.Time
}

var _ AccountManager = (*AccountService)(nil)

// NewAccountService wires the service. A nil throttle disables login throttling and a
// nil logger discards service logs.
func NewAccountService(accounts AccountRepository, hasher *PasswordHasher, policy PasswordPolicy, tokens *TokenIssuer, throttle LoginThrottle, log *zap.Logger) *AccountService {
	if throttle == nil {
		throttle = NoopThrottle{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{
		accounts: accounts,
		hasher:   hasher,
		policy:   policy,
		tokens:   tokens,
		throttle: throttle,
		log:      log.Named("accounts"),
		now:      time.Now,
	}
}

// Register creates one account and assigns in.UserRole when it is non-empty.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (int64, error) {
	userName := strings.TrimSpace(in.UserName)

	issues := CheckUserName(userName)
	issues = append(issues, s.policy.Check(in.Password)...)
	if len(issues) == 0 {
		if _, err := s.accounts.FindByName(ctx, userName); err == nil {
			issues = append(issues, duplicateUserNameError(userName).Issues...)
		} else if !errors.Is(err, ErrAccountNotFound) {
			return 0, appError("find account", err)
		}
	}
	if len(issues) > 0 {
		return 0, &ValidationError{Issues: issues}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return 0, appError("hash password", err)
	}

	rec := AccountRecord{
		UserName:     userName,
		FullName:     in.FullName,
		PhoneNumber:  in.MobilePhone,
		Status:       in.UserStatus,
		PasswordHash: hash,
		RegisteredAt: s.now().UTC().Truncate(time.Microsecond),
	}
	id, err := s.accounts.Create(ctx, rec, strings.TrimSpace(in.UserRole))
	if err != nil {
		if errors.Is(err, ErrDuplicateUserName) {
			return 0, duplicateUserNameError(userName)
		}
		return 0, appError("create account", err)
	}

	s.log.Info("account registered", zap.Int64("account_id", id), zap.String("user_name", userName))
	return id, nil
}

// Authenticate verifies credentials and issues a bearer token. Unknown user names and
// wrong passwords both yield ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, userName, password string) (*LoginResult, error) {
	if userName == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	allowed, err := s.throttle.Acquire(ctx, userName)
	if err != nil {
		s.log.Warn("login throttle unavailable", zap.Error(err))
	}
	if !allowed {
		return nil, ErrTooManyAttempts
	}

	acc, err := s.accounts.FindByName(ctx, userName)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			return nil, appError("find account", err)
		}
		s.hasher.Burn(password)
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(acc.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, _, err := s.tokens.Issue(acc.ID)
	if err != nil {
		return nil, appError("issue token", err)
	}
	if err := s.throttle.Reset(ctx, userName); err != nil {
		s.log.Warn("reset login failures", zap.Error(err))
	}

	res := &LoginResult{
		ID:       acc.ID,
		Username: acc.UserName,
		FullName: acc.FullName,
		Token:    token,
	}
	if acc.Role != "" {
		role := acc.Role
		res.Role = &role
	}
	return res, nil
}

func (s *AccountService) List(ctx context.Context) ([]AccountView, error) {
	recs, err := s.accounts.List(ctx)
	if err != nil {
		return nil, appError("list accounts", err)
	}
	views := make([]AccountView, 0, len(recs))
	for _, r := range recs {
		views = append(views, r.View())
	}
	return views, nil
}

func (s *AccountService) Get(ctx context.Context, id int64) (AccountView, error) {
	rec, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return AccountView{}, ErrAccountNotFound
		}
		return AccountView{}, appError("find account", err)
	}
	return rec.View(), nil
}

// Update overwrites the profile fields of account id and, when in.UserRole is set,
// replaces its roles with that single role. The password is never changed here.
func (s *AccountService) Update(ctx context.Context, id int64, in UpdateInput) error {
	rec, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return appError("find account", err)
	}

	userName := strings.TrimSpace(in.UserName)
	if issues := CheckUserName(userName); len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	if NormalizeUserName(userName) != NormalizeUserName(rec.UserName) {
		other, err := s.accounts.FindByName(ctx, userName)
		switch {
		case err == nil && other.ID != id:
			return duplicateUserNameError(userName)
		case err != nil && !errors.Is(err, ErrAccountNotFound):
			return appError("find account", err)
		}
	}

	rec.UserName = userName
	rec.FullName = in.FullName
	rec.PhoneNumber = in.MobilePhone
	rec.Status = in.UserStatus
	if err := s.accounts.Update(ctx, *rec, strings.TrimSpace(in.UserRole)); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateUserName):
			return duplicateUserNameError(userName)
		case errors.Is(err, ErrAccountNotFound):
			return ErrAccountNotFound
		}
		return appError("update account", err)
	}
	return nil
}

// Delete removes the account. Deleting an id that does not exist succeeds.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		return appError("delete account", err)
	}
	s.log.Info("account deleted", zap.Int64("account_id", id))
	return nil
}
