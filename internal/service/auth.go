package service

import (
	"fmt"
	"time"

	"github.com/aiagenz/billing/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// TokenService verifies the HS256 access tokens issued by the account
// service. Billing shares its signing secret but never logs users in.
type TokenService struct {
	secret []byte
}

func NewTokenService(jwtSecret string) *TokenService {
	return &TokenService{secret: []byte(jwtSecret)}
}

// IssueToken signs a token for the given claims, valid for ttl.
func (s *TokenService) IssueToken(c domain.Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   c.Sub,
		"email": c.Email,
		"role":  c.Role,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", domain.ErrInternal("failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken validates a JWT token and returns the claims.
func (s *TokenService) VerifyToken(tokenStr string) (*domain.Claims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}

	out := &domain.Claims{
		Sub:   getClaimString(claims, "sub"),
		Email: getClaimString(claims, "email"),
		Role:  getClaimString(claims, "role"),
	}
	if out.Sub == "" {
		return nil, domain.ErrUnauthorized("token has no subject")
	}
	return out, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
