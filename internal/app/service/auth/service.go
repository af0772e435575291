package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/types"
)

const (
	issuer    = "iftar"
	RoleAdmin = "admin"
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", types.ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid or expired token", types.ErrUnauthorized)
	ErrNotConfigured      = fmt.Errorf("%w: admin login is not configured", types.ErrUnauthorized)
)

type Claims struct {
	jwt.StandardClaims
	Role string `json:"role"`
}

type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service authenticates the single organizer account and signs HS256 tokens.
type Service struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	log          *zap.SugaredLogger
	now          func() time.Time
}

func New(cfg *cfgpkg.Config, log *zap.SugaredLogger) *Service {
	ac := cfg.Admin
	if ac.PasswordHash == "" || ac.JWTSecret == "" {
		log.Warnw("admin password hash or jwt secret missing, admin login disabled")
	}
	ttl := ac.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		username:     ac.Username,
		passwordHash: []byte(ac.PasswordHash),
		secret:       []byte(ac.JWTSecret),
		ttl:          ttl,
		log:          log,
		now:          time.Now,
	}
}

// HashPassword returns the bcrypt hash to put in admin.password_hash.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("%w: empty password", types.ErrInvalidInput)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Service) configured() bool { return len(s.passwordHash) > 0 && len(s.secret) > 0 }

func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	if !s.configured() {
		return nil, ErrNotConfigured
	}
	lg := logctx.FromCtx(ctx, s.log)
	username = strings.TrimSpace(username)
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// bcrypt runs for unknown users too.
	pwErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || pwErr != nil {
		lg.Warnw("admin_login_failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: exp.Unix(),
		},
		Role: RoleAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	lg.Infow("admin_login", "username", username)
	return &Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Verify parses a bearer token and checks signature, algorithm, expiry and role.
func (s *Service) Verify(token string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrNotConfigured
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleAdmin || claims.Issuer != issuer {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
