package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cafepos/internal/core/apperror"
	appctx "cafepos/internal/core/context"
	"cafepos/internal/core/id"
)

// JWTConfig configures access tokens. The default TTL covers one till shift.
type JWTConfig struct {
	Secret         string
	Issuer         string
	Audience       string
	AccessTokenTTL time.Duration
	Leeway         time.Duration
}

func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "cafepos",
		Audience:       "cafepos-api",
		AccessTokenTTL: 12 * time.Hour,
		Leeway:         30 * time.Second,
	}
}

// Claims is the access token payload. Subject is the staff id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"usr"`
	Role     string `json:"role"`
}

// JWTService signs and checks HS256 access tokens.
type JWTService struct {
	cfg    JWTConfig
	key    []byte
	parser *jwt.Parser
}

func NewJWTService(cfg JWTConfig) *JWTService {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWTService{cfg: cfg, key: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}
}

// GenerateAccessToken signs a token for user and returns its expiry.
func (s *JWTService) GenerateAccessToken(user *User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.New().String(),
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: user.Username,
		Role:     user.Role,
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken returns the staff member raw was issued to. Failures are
// UNAUTHORIZED; an expired token says so, so clients know to refresh.
func (s *JWTService) ValidateToken(raw string) (*appctx.Staff, error) {
	var claims Claims
	_, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperror.NewUnauthorized("token expired").WithDetail("reason", "expired")
	case err != nil:
		return nil, apperror.NewUnauthorized("invalid token")
	}

	staffID, err := id.Parse(claims.Subject)
	if err != nil || !ValidRole(claims.Role) {
		return nil, apperror.NewUnauthorized("invalid token")
	}

	return &appctx.Staff{
		ID:        staffID,
		Username:  claims.Username,
		Role:      claims.Role,
		Superuser: claims.Role == RoleAdmin,
	}, nil
}
