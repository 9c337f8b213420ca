package utils

import (
	"errors"
	"fmt"
	"time"

	"patapesa/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "patapesa"

var ErrInvalidToken = errors.New("invalid token")

// SessionClaims identify the participant behind an API call. Subject carries
// the user id as well, for tools that only read registered claims.
type SessionClaims struct {
	UserID   string `json:"uid"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTUtil issues and checks HS256 session tokens
type JWTUtil struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewJWTUtil creates a new JWTUtil. A non-positive lifetime yields tokens
// that are already expired.
func NewJWTUtil(secretKey string, expirationHours int64) *JWTUtil {
	ju := &JWTUtil{
		secret: []byte(secretKey),
		ttl:    time.Duration(expirationHours) * time.Hour,
		now:    time.Now,
	}
	ju.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return ju.now() }),
	)
	return ju
}

// GenerateToken issues a token for user. Accounts without a role get RoleUser.
func (ju *JWTUtil) GenerateToken(user *model.User) (string, error) {
	role := user.Role
	if role == "" {
		role = model.RoleUser
	}
	now := ju.now()
	claims := &SessionClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ju.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ju.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks signature, algorithm, issuer and expiry.
func (ju *JWTUtil) ValidateToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := ju.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return ju.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
