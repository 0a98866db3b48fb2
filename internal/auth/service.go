package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnforge/learnforge-lms/internal/db"
	"github.com/learnforge/learnforge-lms/internal/lmserr"
)

const (
	RoleStudent   = "student"
	RoleProfessor = "professor"
)

var (
	emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

	// Identical error for unknown username and wrong password, so callers
	// cannot enumerate accounts.
	errBadCredentials = fmt.Errorf("invalid username or password: %w", lmserr.ErrUnauthorized)
)

// Service hashes and verifies credentials and issues signed, time-limited
// session tokens. The signing secret and TTL come from process config.
type Service struct {
	db       *sql.DB
	hmac     []byte
	tokenTTL time.Duration
}

func NewService(dbh *sql.DB, secret string, tokenTTL time.Duration) *Service {
	return &Service{db: dbh, hmac: []byte(secret), tokenTTL: tokenTTL}
}

type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// Identity is the result of verifying a session token: the token subject plus
// the role the users table currently holds for it.
type Identity struct {
	Username  string
	Role      string
	ExpiresAt time.Time
}

// Register validates the input, hashes the password and stores the user.
// Only the hash is ever persisted.
func (s *Service) Register(ctx context.Context, in RegisterInput) (int64, error) {
	if in.Role == "" {
		in.Role = RoleStudent
	}
	if err := validateRegister(in); err != nil {
		return 0, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), 12)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, email, full_name, phone, role)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		in.Username, string(hash), in.Email, in.FullName, in.Phone, in.Role).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, lmserr.Conflictf("username %q already taken", in.Username)
		}
		return 0, err
	}
	return id, nil
}

// Authenticate checks the credentials and issues a signed token with the
// username as subject, expiring after the configured TTL.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username=$1`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errBadCredentials
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", errBadCredentials
	}
	return s.issueAt(time.Now(), username)
}

func (s *Service) issueAt(now time.Time, sub string) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    "learnforge",
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.hmac)
}

// Verify checks signature and expiry and resolves the subject against the
// users table; a token for a vanished user is rejected.
func (s *Service) Verify(ctx context.Context, tokenStr string) (*Identity, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", lmserr.ErrUnauthorized)
	}

	var role string
	err = s.db.QueryRowContext(ctx,
		`SELECT role FROM users WHERE username=$1`, claims.Subject).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invalid token: %w", lmserr.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return &Identity{Username: claims.Subject, Role: role, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func validateRegister(in RegisterInput) error {
	if in.Username == "" {
		return lmserr.Validationf("username required")
	}
	if in.Role != RoleStudent && in.Role != RoleProfessor {
		return lmserr.Validationf("invalid role %q", in.Role)
	}
	if !emailRe.MatchString(in.Email) {
		return lmserr.Validationf("invalid email")
	}
	if !phoneRe.MatchString(in.Phone) {
		return lmserr.Validationf("invalid phone number")
	}
	return validatePassword(in.Password)
}

// validatePassword enforces minimum strength: at least 8 characters with one
// upper, one lower and one digit.
func validatePassword(pw string) error {
	if len(pw) < 8 {
		return lmserr.Validationf("password must be at least 8 characters")
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return lmserr.Validationf("password must contain an upper-case letter, a lower-case letter and a digit")
	}
	return nil
}
