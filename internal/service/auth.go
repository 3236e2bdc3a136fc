package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	tokenIssuer       = "finledger"
	accessTokenType   = "access"
	minPasswordLength = 6

	// SignupRedirect is where a new user goes to fill in their profile.
	SignupRedirect = "/setup-profile"
	// LoginRedirect is where a returning user lands.
	LoginRedirect = "/dashboard"
)

// Claims are the JWT claims issued at login. Subject is the username.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// AuthService creates accounts and issues and validates access tokens.
type AuthService struct {
	accounts   port.AccountStore
	ledgers    port.LedgerStore
	jwtSecret  []byte
	accessTTL  time.Duration
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(accounts port.AccountStore, ledgers port.LedgerStore, jwtSecret string, accessTTL time.Duration, bcryptCost int, logger *zap.Logger) *AuthService {
	return &AuthService{
		accounts:   accounts,
		ledgers:    ledgers,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		bcryptCost: bcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

// TokenTTL is how long issued tokens stay valid.
func (s *AuthService) TokenTTL() time.Duration {
	return s.accessTTL
}

// ============================================================
// Signup — POST /v1/auth/signup
// ============================================================

func (s *AuthService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.AuthResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Signup")
	defer span.End()

	username := strings.TrimSpace(req.Username)
	span.SetAttributes(attribute.String("username", username))

	if err := s.CreateAccount(ctx, username, req.Password); err != nil {
		return nil, err
	}

	token, err := s.signAccessToken(username)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &domain.AuthResponse{
		Token:      token,
		ExpiresIn:  int(s.accessTTL.Seconds()),
		Username:   username,
		RedirectTo: SignupRedirect,
	}, nil
}

// CreateAccount validates credentials, stores the account and creates its
// empty ledger. Used by signup and by the adduser command.
func (s *AuthService) CreateAccount(ctx context.Context, username, password string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.CreateAccount")
	defer span.End()

	if username == "" {
		return &domain.ErrValidation{Field: "username", Message: "username is required"}
	}
	if password == "" {
		return &domain.ErrValidation{Field: "password", Message: "password is required"}
	}
	if len(password) < minPasswordLength {
		return &domain.ErrValidation{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}

	existing, err := s.accounts.GetAccount(ctx, username)
	if err != nil {
		return fmt.Errorf("check existing account: %w", err)
	}
	if existing != nil {
		return &domain.ErrConflict{Message: "username already taken"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.accounts.CreateAccount(ctx, &domain.UserAccount{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	// a ledger left over from an earlier partial signup is reused
	if err := s.ledgers.CreateLedger(ctx, domain.NewUserLedger(username, now)); err != nil {
		var conflict *domain.ErrConflict
		if !errors.As(err, &conflict) {
			return fmt.Errorf("create ledger: %w", err)
		}
	}

	s.logger.Info("account created", zap.String("username", username))
	return nil
}

// ============================================================
// Login — POST /v1/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	username := strings.TrimSpace(req.Username)
	span.SetAttributes(attribute.String("username", username))

	if username == "" || req.Password == "" {
		return nil, &domain.ErrValidation{Field: "username", Message: "username and password are required"}
	}

	account, err := s.accounts.GetAccount(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		s.logger.Warn("login: unknown username", zap.String("username", username))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login: wrong password", zap.String("username", username))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	token, err := s.signAccessToken(username)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("user logged in", zap.String("username", username))

	return &domain.AuthResponse{
		Token:      token,
		ExpiresIn:  int(s.accessTTL.Seconds()),
		Username:   username,
		RedirectTo: LoginRedirect,
	}, nil
}

// ============================================================
// Tokens
// ============================================================

func (s *AuthService) signAccessToken(username string) (string, error) {
	now := s.now()
	claims := Claims{
		Type: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != accessTokenType || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return claims, nil
}
