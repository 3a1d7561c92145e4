package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"html"
	"log"
	"math/big"
	"strconv"
	"time"

	"github.com/CrowderSoup/prioritease/database"
	"github.com/CrowderSoup/prioritease/validation"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Token lifetimes.
const (
	AdminTokenTTL = 24 * time.Hour
	UserTokenTTL  = 720 * time.Hour
	ResetCodeTTL  = 15 * time.Minute
)

var (
	// ErrUnauthenticated is returned when no credential was presented.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrInvalidCredential is returned for bad passwords and tokens that fail verification.
	ErrInvalidCredential = errors.New("invalid credentials")

	// ErrSubjectNotFound is returned when a valid token names a user that no longer exists.
	ErrSubjectNotFound = errors.New("user no longer exists")

	// ErrDisabled is returned when the token subject has been disabled.
	ErrDisabled = errors.New("account is disabled")

	// ErrForbidden is returned when the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// Identity is the verified caller of a request.
type Identity struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Admin    bool   `json:"admin"`
}

// Claims is the JWT payload.
type Claims struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

// AuthStore is the account storage used by AuthService.
type AuthStore interface {
	FindUser(ctx context.Context, id uint, enabled *bool) (*database.User, error)
	FindUserByEmail(ctx context.Context, email string) (*database.User, error)
	FindUsersByUsername(ctx context.Context, username string) ([]database.User, error)
	IssueResetCode(ctx context.Context, email string, code int64, expiry time.Time) (*database.User, error)
	RedeemResetCode(ctx context.Context, email string, code int64, passwordHash string, now time.Time) error
}

type AuthService struct {
	store     AuthStore
	jwtSecret []byte
	mailer    Mailer
	logger    *log.Logger
	now       func() time.Time
}

func NewAuthService(store AuthStore, jwtSecret string, mailer Mailer, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = log.Default()
	}
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	return &AuthService{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		mailer:    mailer,
		logger:    logger,
		now:       time.Now,
	}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login verifies credentials and issues a token for the matching enabled user.
// A username may be shared by several accounts; the first whose password matches wins.
func (s *AuthService) Login(ctx context.Context, creds validation.Credentials) (string, *database.User, error) {
	var candidates []database.User
	if creds.Email != "" {
		u, err := s.store.FindUserByEmail(ctx, creds.Email)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return "", nil, err
		}
		if u != nil {
			candidates = append(candidates, *u)
		}
	} else {
		users, err := s.store.FindUsersByUsername(ctx, creds.Username)
		if err != nil {
			return "", nil, err
		}
		candidates = users
	}

	for i := range candidates {
		u := &candidates[i]
		if !CheckPassword(u.Password, creds.Password) {
			continue
		}
		token, err := s.CreateJWT(u)
		if err != nil {
			return "", nil, err
		}
		return token, u, nil
	}
	return "", nil, ErrInvalidCredential
}

// CreateJWT generates a signed token for user.
func (s *AuthService) CreateJWT(user *database.User) (string, error) {
	ttl := UserTokenTTL
	if user.Admin {
		ttl = AdminTokenTTL
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Admin:    user.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyJWT checks signature and expiry and returns the claims.
func (s *AuthService) VerifyJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid || claims.ID == 0 {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}

// Authenticate turns a bearer token into the identity of an enabled user.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrUnauthenticated
	}
	claims, err := s.VerifyJWT(tokenString)
	if err != nil {
		return Identity{}, err
	}

	user, err := s.store.FindUser(ctx, claims.ID, nil)
	if errors.Is(err, database.ErrNotFound) {
		return Identity{}, ErrSubjectNotFound
	}
	if err != nil {
		return Identity{}, err
	}
	if !user.Enabled {
		return Identity{}, ErrDisabled
	}
	return IdentityOf(user), nil
}

// IdentityOf returns the identity of user.
func IdentityOf(user *database.User) Identity {
	return Identity{ID: user.ID, Username: user.Username, Email: user.Email, Admin: user.Admin}
}

// ForgotPassword issues a reset code for the enabled account owning email and mails it.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	code, err := generateResetCode()
	if err != nil {
		return err
	}
	user, err := s.store.IssueResetCode(ctx, email, code, s.now().Add(ResetCodeTTL))
	if err != nil {
		return err
	}

	body := fmt.Sprintf("<p>Hello %s,</p><p>Your PrioritEase password reset code is <strong>%08d</strong>.</p>"+
		"<p>It expires in %d minutes. If you didn't request it, you can safely ignore this email.</p>",
		html.EscapeString(user.Username), code, int(ResetCodeTTL/time.Minute))
	if err := s.mailer.Send(user.Email, "Your PrioritEase password reset code", body); err != nil {
		s.logger.Printf("Warning: Failed to send reset email to %s: %v", user.Email, err)
	}
	return nil
}

// ResetPassword replaces the password when code is valid for email.
func (s *AuthService) ResetPassword(ctx context.Context, in validation.ResetInput) error {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return err
	}
	return s.store.RedeemResetCode(ctx, in.Email, in.Code, hash, s.now())
}

// generateResetCode returns a random 8 digit code.
func generateResetCode() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90000000))
	if err != nil {
		return 0, fmt.Errorf("failed to generate reset code: %w", err)
	}
	return n.Int64() + 10000000, nil
}
