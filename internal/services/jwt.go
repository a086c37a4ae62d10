package services

import (
	"fmt"
	"time"

	"casino-backend/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	audiencePlayer  = "blackjack-player"
	audienceCompute = "blackjack-compute"

	playerTokenTTL  = 24 * time.Hour
	serviceTokenTTL = 365 * 24 * time.Hour
)

type Claims struct {
	UserID    int64  `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

type ServiceClaims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secret        []byte
	serviceSecret []byte
	now           func() time.Time
}

func NewJWTService(cfg *config.Config) *JWTService {
	serviceSecret := cfg.ServiceJWTSecret
	if serviceSecret == "" {
		serviceSecret = cfg.JWTSecret
	}
	return &JWTService{
		secret:        []byte(cfg.JWTSecret),
		serviceSecret: []byte(serviceSecret),
		now:           time.Now,
	}
}

func (s *JWTService) registered(audience, subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.New().String(),
	}
}

func (s *JWTService) GenerateToken(userID int64) (string, error) {
	claims := &Claims{
		UserID:           userID,
		SessionID:        uuid.New().String(),
		RegisteredClaims: s.registered(audiencePlayer, fmt.Sprint(userID), playerTokenTTL),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, s.parserOptions(audiencePlayer)...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("invalid token: missing user id")
	}
	return claims, nil
}

// GenerateServiceToken mints the credential the compute service uses for
// settlement callbacks and record reads.
func (s *JWTService) GenerateServiceToken(service string) (string, error) {
	claims := &ServiceClaims{
		Service:          service,
		RegisteredClaims: s.registered(audienceCompute, service, serviceTokenTTL),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.serviceSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	return token, nil
}

func (s *JWTService) ValidateServiceToken(tokenString string) (*ServiceClaims, error) {
	claims := &ServiceClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.serviceSecret, nil
	}, s.parserOptions(audienceCompute)...)
	if err != nil {
		return nil, fmt.Errorf("invalid service token: %w", err)
	}
	return claims, nil
}

func (s *JWTService) parserOptions(audience string) []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
}
