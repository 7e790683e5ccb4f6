package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// userNamespace scopes name-derived user ids.
var userNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://sportshub/users"))

type AuthService interface {
	GenerateToken(userID domain.UserID, username string) (string, error)
	GenerateRefreshToken(userID domain.UserID, username string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
	AccessTokenTTL() time.Duration
	GetUserFromContext(ctx context.Context) (domain.UserID, error)
}

type Claims struct {
	UserID    domain.UserID `json:"user_id"`
	Username  string        `json:"username"`
	TokenType string        `json:"typ"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret       []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	clock           clockwork.Clock
}

func NewAuthService(jwtSecret string, accessTokenTTL, refreshTokenTTL time.Duration, clock clockwork.Clock) AuthService {
	return &authService{
		jwtSecret:       []byte(jwtSecret),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		clock:           clock,
	}
}

// UserIDFor derives a stable user id from a username, so the same name
// always maps to the same host and viewer records.
func UserIDFor(username string) domain.UserID {
	name := strings.ToLower(strings.TrimSpace(username))
	return domain.UserID(uuid.NewSHA1(userNamespace, []byte(name)).String())
}

func (s *authService) AccessTokenTTL() time.Duration {
	return s.accessTokenTTL
}

func (s *authService) GenerateToken(userID domain.UserID, username string) (string, error) {
	return s.sign(userID, username, tokenTypeAccess, s.accessTokenTTL)
}

func (s *authService) GenerateRefreshToken(userID domain.UserID, username string) (string, error) {
	return s.sign(userID, username, tokenTypeRefresh, s.refreshTokenTTL)
}

func (s *authService) sign(userID domain.UserID, username, tokenType string, ttl time.Duration) (string, error) {
	now := s.clock.Now()
	claims := &Claims{
		UserID:    userID,
		Username:  username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) GetUserFromContext(ctx context.Context) (domain.UserID, error) {
	userID := logger.UserIDFrom(ctx)
	if userID == "" {
		return "", ErrUnauthorized
	}
	return domain.UserID(userID), nil
}
