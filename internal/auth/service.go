package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ancestrio/family-archive/internal/storage"
)

// Credentials is the stored login material for one account.
type Credentials struct {
	UserID       int64
	PasswordHash string
	Status       string
}

// Repository is the storage contract for accounts and sessions.
type Repository interface {
	GetCredentialsByEmail(email string) (*Credentials, error)
	GetUserWithPermissions(userID int64) (*User, error)
	CreateUser(fullName, email, passwordHash string) (int64, error)
	UpdateSessionToken(userID int64, sessionToken string) error
	ClearSessionToken(userID int64) error
}

// TokenGenerator mints and validates access tokens.
type TokenGenerator interface {
	Generate(userID int64, sessionID string) (string, error)
	Validate(tokenString string) (*Claims, error)
}

// ServiceAPI is the surface consumed by handlers and middleware.
type ServiceAPI interface {
	Authenticate(dto LoginDTO) (*TokenResponse, error)
	Signup(dto SignupDTO) (*TokenResponse, error)
	Logout(userID int64) error
	ValidateAccessToken(tokenString string) (*Claims, error)
	GetUserWithPermissions(userID int64) (*User, error)
}

type Service struct {
	repo       Repository
	tokens     TokenGenerator
	guard      *storage.Guard
	logger     *slog.Logger
	bcryptCost int
}

func NewService(repo Repository, tokens TokenGenerator, guard *storage.Guard, logger *slog.Logger, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		tokens:     tokens,
		guard:      guard,
		logger:     logger,
		bcryptCost: bcryptCost,
	}
}

// Authenticate verifies credentials, rotates the account's session token
// and issues a JWT carrying the new session id. Rotation is what enforces
// a single active session: tokens from earlier logins embed a stale sid.
func (s *Service) Authenticate(dto LoginDTO) (*TokenResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.guard.Check(); err != nil {
		return nil, err
	}

	creds, err := s.repo.GetCredentialsByEmail(strings.ToLower(strings.TrimSpace(dto.Email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, s.guard.Normalize(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(dto.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !strings.EqualFold(creds.Status, StatusActive) {
		return nil, ErrAccountDisabled
	}

	return s.openSession(creds.UserID)
}

// Signup registers an active account and logs it straight in.
func (s *Service) Signup(dto SignupDTO) (*TokenResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.guard.Check(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := s.repo.CreateUser(strings.TrimSpace(dto.FullName), strings.ToLower(strings.TrimSpace(dto.Email)), string(hash))
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, s.guard.Normalize(err)
	}

	s.logger.Info("user registered", "user_id", userID)
	return s.openSession(userID)
}

func (s *Service) openSession(userID int64) (*TokenResponse, error) {
	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSessionToken(userID, sessionID); err != nil {
		return nil, s.guard.Normalize(err)
	}

	token, err := s.tokens.Generate(userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	user, err := s.repo.GetUserWithPermissions(userID)
	if err != nil {
		return nil, s.guard.Normalize(err)
	}
	return &TokenResponse{Token: token, User: user}, nil
}

// Logout clears the stored session token so every outstanding JWT for the
// account fails the sid comparison.
func (s *Service) Logout(userID int64) error {
	if err := s.guard.Check(); err != nil {
		return err
	}
	if err := s.repo.ClearSessionToken(userID); err != nil {
		return s.guard.Normalize(err)
	}
	return nil
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokens.Validate(tokenString)
}

func (s *Service) GetUserWithPermissions(userID int64) (*User, error) {
	if err := s.guard.Check(); err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserWithPermissions(userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, s.guard.Normalize(err)
	}
	return user, nil
}

func newSessionID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// JWTTokenGenerator signs HS256 access tokens.
type JWTTokenGenerator struct {
	Secret []byte
	TTL    time.Duration
}

func NewJWTTokenGenerator(secret string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &JWTTokenGenerator{Secret: []byte(secret), TTL: ttl}
}

func (j *JWTTokenGenerator) Generate(userID int64, sessionID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("%d", userID),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
}

func (j *JWTTokenGenerator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
