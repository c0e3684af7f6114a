package utils

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned by Decode for malformed, tampered, expired or
// wrongly signed tokens. The underlying jwt error stays in the chain.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload carried by access and refresh tokens.
type Claims struct {
	Type string `json:"type"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTUtil signs and verifies RSA-signed JWTs.
type JWTUtil struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	method     *jwt.SigningMethodRSA
	defaultTTL time.Duration
}

// NewJWTUtil creates a JWTUtil for one of RS256, RS384 or RS512.
func NewJWTUtil(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, algorithm string, defaultTTL time.Duration) (*JWTUtil, error) {
	if privateKey == nil || publicKey == nil {
		return nil, errors.New("both private and public keys are required")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodRSA)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &JWTUtil{
		privateKey: privateKey,
		publicKey:  publicKey,
		method:     method,
		defaultTTL: defaultTTL,
	}, nil
}

// LoadJWTUtil reads a PEM-encoded key pair from disk and creates a JWTUtil.
func LoadJWTUtil(privateKeyPath, publicKeyPath, algorithm string, defaultTTL time.Duration) (*JWTUtil, error) {
	privatePEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return NewJWTUtil(privateKey, publicKey, algorithm, defaultTTL)
}

// Encode stamps exp, iat and a fresh jti onto claims and signs them.
// A zero ttl uses the default lifetime.
func (ju *JWTUtil) Encode(claims Claims, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = ju.defaultTTL
	}
	now := time.Now()
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ID = uuid.NewString()

	token := jwt.NewWithClaims(ju.method, claims)
	tokenString, err := token.SignedString(ju.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Decode verifies the signature and expiry of tokenString and returns its claims.
func (ju *JWTUtil) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return ju.publicKey, nil
	}, jwt.WithValidMethods([]string{ju.method.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
