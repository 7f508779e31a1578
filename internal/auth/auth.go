package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrNoDriver      = errors.New("no driver id found in token")
	ErrNotEntitled   = errors.New("token lacks the required role")
	ErrMissingBearer = errors.New("missing bearer token")
)

// MonitorOperationsRole entitles an operator to read monitoring state.
const MonitorOperationsRole = "monitor-operations"

// DriverClaims identify the driver posting pings for a trip.
type DriverClaims struct {
	DriverID int64 `json:"driverId"`
	jwt.RegisteredClaims
}

// OperatorClaims identify an operations user and the companies they may
// monitor.
type OperatorClaims struct {
	Role                string  `json:"role"`
	TransportCompanyIDs []int64 `json:"transportCompanyIds"`
	jwt.RegisteredClaims
}

// Service verifies HMAC-signed tokens issued by the upstream identity
// provider.
type Service struct {
	secret []byte
}

func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

func (s *Service) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return s.secret, nil
}

// ParseDriverToken validates a driver token and requires a driver id.
func (s *Service) ParseDriverToken(raw string) (*DriverClaims, error) {
	claims := &DriverClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, s.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.DriverID == 0 {
		return nil, ErrNoDriver
	}
	return claims, nil
}

// ParseOperatorToken validates an operator token and requires the
// monitor-operations role.
func (s *Service) ParseOperatorToken(raw string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, s.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != MonitorOperationsRole {
		return nil, ErrNotEntitled
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrMissingBearer
	}
	return parts[1], nil
}
