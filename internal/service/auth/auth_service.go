package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rafl-be/internal/domain"
	"rafl-be/pkg/logger"
)

// ErrOperatorUnauthorized is returned for any unusable operator token
var ErrOperatorUnauthorized = errors.New("operator token invalid")

const issuer = "rafl"

// operatorClaims is the JWT body of a dashboard operator token
type operatorClaims struct {
	StoreID string `json:"store_id"`
	jwt.RegisteredClaims
}

// Service validates and issues operator tokens (HS256)
type Service struct {
	secret []byte
	logger *logger.Logger
}

// NewService creates a new auth service
func NewService(secret string, logger *logger.Logger) *Service {
	return &Service{
		secret: []byte(secret),
		logger: logger,
	}
}

// ValidateToken parses an operator token and returns its claims
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*domain.OperatorClaims, error) {
	if len(s.secret) == 0 {
		s.logger.Error("Operator JWT secret not configured")
		return nil, ErrOperatorUnauthorized
	}
	if !isJWTToken(tokenString) {
		return nil, ErrOperatorUnauthorized
	}

	claims := &operatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		s.logger.WithError(err).Debug("Operator token rejected")
		return nil, ErrOperatorUnauthorized
	}

	if _, err := uuid.Parse(claims.StoreID); err != nil {
		s.logger.Debug("Operator token has no valid store_id")
		return nil, ErrOperatorUnauthorized
	}

	return &domain.OperatorClaims{
		Subject:   claims.Subject,
		StoreID:   claims.StoreID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IssueToken signs an operator token for storeID valid for ttl
func (s *Service) IssueToken(subject, storeID string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("operator JWT secret not configured")
	}
	if _, err := uuid.Parse(storeID); err != nil {
		return "", fmt.Errorf("store id must be a UUID: %w", err)
	}

	now := time.Now()
	claims := operatorClaims{
		StoreID: storeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// isJWTToken checks for the three dot separated segments of a compact JWT
func isJWTToken(token string) bool {
	if len(token) < 10 {
		return false
	}
	dots := 0
	for _, c := range token {
		if c == '.' {
			dots++
		}
	}
	return dots == 2
}
