package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/faucetdb/frontdesk/internal/model"
	"github.com/faucetdb/frontdesk/internal/store"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 30 * time.Minute

const tokenIssuer = "frontdesk"

// UserStore is the persistence the authenticator needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context, companyID int64) ([]model.User, error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// AuthService verifies staff credentials and issues signed session tokens.
type AuthService struct {
	store      UserStore
	jwtSecret  []byte
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(st UserStore, jwtSecret string, opts ...AuthOption) *AuthService {
	s := &AuthService{
		store:      st,
		jwtSecret:  []byte(jwtSecret),
		ttl:        DefaultTokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TokenTTL returns the lifetime of issued tokens.
func (s *AuthService) TokenTTL() time.Duration {
	return s.ttl
}

// CreateAccount provisions a staff account with a bcrypt-hashed password.
func (s *AuthService) CreateAccount(ctx context.Context, username, password string, companyID int64, superuser bool) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, invalidInput("username is required")
	}
	if password == "" {
		return nil, invalidInput("password is required")
	}
	if companyID <= 0 {
		return nil, invalidInput("company_id must be positive")
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, internalError("look up user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, invalidInput("password must be at most 72 bytes")
		}
		return nil, internalError("hash password", err)
	}

	u := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		CompanyID:    companyID,
		IsSuperuser:  superuser,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateUsername
		}
		return nil, internalError("create user", err)
	}
	return u, nil
}

// Authenticate checks a username/password pair and returns a fresh session.
// Unknown users and wrong passwords both yield ErrAuthFailure and cost the
// same bcrypt comparison.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, internalError("look up user", err)
		}
		bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, ErrAuthFailure
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrAuthFailure
	}

	token, expiresAt, err := s.IssueToken(u.ID)
	if err != nil {
		return nil, internalError("issue token", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("frontdesk-timing-equalizer"), s.bcryptCost)
	})
	return s.dummyHash
}

// IssueToken signs {sub: userID, exp: now+ttl} with HS256.
func (s *AuthService) IssueToken(userID int64) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// DecodeToken verifies the signature and expiry of a session token and
// returns its subject. It never returns the subject of a rejected token.
func (s *AuthService) DecodeToken(tokenStr string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, ErrMalformedToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrMalformedToken
	}
	return userID, nil
}

// CurrentUser resolves a token to the account it was issued for. The
// account is reloaded on every call.
func (s *AuthService) CurrentUser(ctx context.Context, tokenStr string) (*model.User, error) {
	userID, err := s.DecodeToken(tokenStr)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAuthFailure
		}
		return nil, internalError("load user", err)
	}
	return u, nil
}

// EnsureSuperuser creates the bootstrap superuser unless an account with
// that username already exists. It reports whether an account was created.
func (s *AuthService) EnsureSuperuser(ctx context.Context, username, password string, companyID int64) (bool, error) {
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, internalError("look up superuser", err)
	}

	if _, err := s.CreateAccount(ctx, username, password, companyID, true); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListUsers returns the accounts visible to actor: every account for a
// superuser, otherwise those of the actor's company.
func (s *AuthService) ListUsers(ctx context.Context, actor *model.User) ([]model.User, error) {
	companyID := actor.CompanyID
	if actor.IsSuperuser {
		companyID = 0
	}
	users, err := s.store.ListUsers(ctx, companyID)
	if err != nil {
		return nil, internalError("list users", err)
	}
	return users, nil
}

// CreateUserAs provisions an account on behalf of actor. Non-superusers can
// only create regular accounts in their own company.
func (s *AuthService) CreateUserAs(ctx context.Context, actor *model.User, username, password string, companyID int64, superuser bool) (*model.User, error) {
	if !actor.IsSuperuser {
		if superuser {
			return nil, ErrForbidden
		}
		companyID = actor.CompanyID
	}
	if companyID == 0 {
		companyID = actor.CompanyID
	}
	return s.CreateAccount(ctx, username, password, companyID, superuser)
}
