// Package auth issues and checks access tokens, hashes passwords and
// verifies identities vouched for by Firebase.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"portal-backend/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is what an access token carries.
type Claims struct {
	UserID    string
	Role      models.Role
	ID        string
	ExpiresAt time.Time
}

// TokenIssuer signs HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func newJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Generate issues a token for the user.
func (t *TokenIssuer) Generate(userID string, role models.Role) (string, error) {
	jti, err := newJTI()
	if err != nil {
		return "", err
	}
	now := t.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"jti":     jti,
		"iat":     now.Unix(),
		"exp":     now.Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates the signature and expiry of tokenString.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	role, _ := claims["role"].(string)
	jti, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	return &Claims{UserID: userID, Role: models.Role(role), ID: jti, ExpiresAt: exp.Time}, nil
}

// Credentials joins password hashing and token issuance for the core.
type Credentials struct {
	BcryptHasher
	Tokens *TokenIssuer
}

func (c Credentials) IssueToken(u *models.User) (string, error) {
	return c.Tokens.Generate(u.ID, u.Role)
}
