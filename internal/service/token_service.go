package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"user_backend/internal/apperror"
	"user_backend/internal/model"
	"user_backend/internal/utils"
)

const bearerPrefix = "Bearer "

// TokenService issues and validates access and refresh tokens.
type TokenService struct {
	jwt        *utils.JWTUtil
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a new TokenService
func NewTokenService(jwtUtil *utils.JWTUtil, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{jwt: jwtUtil, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// IssueAccess creates an access token for the user.
func (s *TokenService) IssueAccess(userID int64, role string) (string, error) {
	return s.issue(model.TokenTypeAccess, userID, role, s.accessTTL)
}

// IssueRefresh creates a refresh token for the user.
func (s *TokenService) IssueRefresh(userID int64, role string) (string, error) {
	return s.issue(model.TokenTypeRefresh, userID, role, s.refreshTTL)
}

func (s *TokenService) issue(tokenType string, userID int64, role string, ttl time.Duration) (string, error) {
	claims := utils.Claims{Type: tokenType, Role: role}
	claims.Subject = strconv.FormatInt(userID, 10)
	token, err := s.jwt.Encode(claims, ttl)
	if err != nil {
		return "", apperror.Internal(err)
	}
	return token, nil
}

// Decode verifies token and returns its claims.
func (s *TokenService) Decode(token string) (*utils.Claims, error) {
	claims, err := s.jwt.Decode(token)
	if err != nil {
		return nil, apperror.Authentication("Invalid token")
	}
	return claims, nil
}

// PayloadFromBearerHeader extracts and verifies the token of an
// "Authorization: Bearer <token>" header.
func (s *TokenService) PayloadFromBearerHeader(header string) (*utils.Claims, error) {
	if header == "" {
		return nil, apperror.Authentication("Not authenticated")
	}
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return nil, apperror.Authentication("Invalid authorization header")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return nil, apperror.Authentication("Invalid authorization header")
	}
	return s.Decode(token)
}

// RequireType checks the token type claim.
func RequireType(claims *utils.Claims, expected string) (*utils.Claims, error) {
	if claims.Type != expected {
		return nil, apperror.Authentication(fmt.Sprintf("Invalid token type %q expected %q", claims.Type, expected))
	}
	return claims, nil
}

// SubjectID parses the numeric user id from the subject claim.
func SubjectID(claims *utils.Claims) (int64, error) {
	if claims.Subject == "" {
		return 0, apperror.Authentication("Invalid token (subject not found)")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, apperror.Authentication("Invalid token (subject not found)")
	}
	return id, nil
}
