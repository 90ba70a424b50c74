package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"tindahanko/backend/internal/domain"
	"tindahanko/backend/internal/service"
	"tindahanko/backend/internal/store"
)

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	repo     AccountStore
	svc      *service.Service
}

type AccountStore interface {
	CreateAccount(ctx context.Context, account domain.Account) error
	GetAccount(ctx context.Context, username string) (*domain.Account, error)
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, repo AccountStore, svc *service.Service) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		repo:     repo,
		svc:      svc,
	}
}

// Register creates the account and resolves its role in the same call.
// The very first registrant becomes admin; everyone after is a cashier.
func (a *AuthManager) Register(ctx context.Context, req domain.RegisterRequest) (domain.RegisterResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return domain.RegisterResponse{}, fmt.Errorf("username must be at least 4 characters")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.RegisterResponse{}, fmt.Errorf("username must not contain spaces")
	}
	if len(strings.TrimSpace(req.Password)) < 8 {
		return domain.RegisterResponse{}, fmt.Errorf("password must be at least 8 characters")
	}
	if err := validatePIN(req.PIN); err != nil {
		return domain.RegisterResponse{}, err
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.RegisterResponse{}, fmt.Errorf("failed to hash password")
	}
	pinHash, err := hashPassword(req.PIN)
	if err != nil {
		return domain.RegisterResponse{}, fmt.Errorf("failed to hash pin")
	}

	err = a.repo.CreateAccount(ctx, domain.Account{
		Username:     username,
		PasswordHash: passwordHash,
		PINHash:      pinHash,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			return domain.RegisterResponse{}, fmt.Errorf("username already exists")
		}
		return domain.RegisterResponse{}, err
	}

	assignment, err := a.svc.EnsureRole(ctx, username)
	if err != nil {
		return domain.RegisterResponse{}, err
	}

	return domain.RegisterResponse{Username: username, Role: assignment.Role}, nil
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	account, err := a.repo.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, errors.New("invalid credentials")
		}
		return domain.LoginResponse{}, err
	}

	if !verifyPassword(account.PasswordHash, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !account.Active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	// Role assignment is idempotent, so accounts predating the role
	// table still resolve one at login.
	assignment, err := a.svc.EnsureRole(ctx, username)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, assignment.Role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        assignment.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Principal: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "tindahanko",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// VerifyPIN checks the caller's own PIN. The PIN is UI friction in
// front of catalog mutations, not the authorization boundary.
func (a *AuthManager) VerifyPIN(ctx context.Context, principal string, pin string) bool {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return false
	}
	account, err := a.repo.GetAccount(ctx, principal)
	if err != nil || !account.Active || !isPasswordHash(account.PINHash) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PINHash), []byte(pin)) == nil
}

func validatePIN(pin string) error {
	pin = strings.TrimSpace(pin)
	if len(pin) < 4 || len(pin) > 6 {
		return fmt.Errorf("pin must be 4 to 6 digits")
	}
	allSame := true
	for i, c := range pin {
		if c < '0' || c > '9' {
			return fmt.Errorf("pin must be 4 to 6 digits")
		}
		if i > 0 && byte(c) != pin[0] {
			allSame = false
		}
	}
	if allSame {
		return fmt.Errorf("pin must not repeat a single digit")
	}
	return nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
