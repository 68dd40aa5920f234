package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/navalmess/api/internal/model"
)

// Errors returned by Validate.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the identity assertion issued at login. Session/cookie
// persistence of this token is the surrounding web layer's concern; this
// package only mints and verifies it.
type Claims struct {
	jwt.RegisteredClaims

	UserID uuid.UUID  `json:"user_id"`
	NII    string     `json:"nii"`
	Role   model.Role `json:"role"`
}

// JWTManager issues and validates signed identity assertions.
type JWTManager struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewJWTManager builds a manager using secret as the HMAC signing key.
func NewJWTManager(secret []byte, issuer string, expiry time.Duration) *JWTManager {
	return &JWTManager{secret: secret, issuer: issuer, expiry: expiry}
}

// Generate mints a signed token for a successfully authenticated user.
func (jm *JWTManager) Generate(u model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jm.issuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(jm.expiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
		UserID: u.ID,
		NII:    u.NII,
		Role:   u.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jm.secret)
}

// Validate parses and verifies a token, returning its claims.
func (jm *JWTManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return jm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
