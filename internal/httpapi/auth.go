package httpapi

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/AchayoEarnest/smartpos/internal/domain"
)

// AuthManager signs and verifies the HS256 bearer tokens the API hands out
// at login. Credential checks live in the service layer; this type only
// deals with tokens.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
}

type apiClaims struct {
	jwtlib.RegisteredClaims
	UserID string `json:"uid"`
	Role   string `json:"role"`
}

// NewAuthManager panics on an empty secret; cmd/server enforces a minimum
// length before wiring, so a blank secret here is a programming error.
func NewAuthManager(secret string, tokenTTL time.Duration) *AuthManager {
	if secret == "" {
		panic("httpapi: auth secret must not be empty")
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

func (a *AuthManager) IssueToken(user domain.UserInfo) (string, time.Time, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	claims := apiClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "smartpos",
		},
		UserID: user.ID,
		Role:   user.Role,
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &apiClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{ID: claims.UserID, Username: sub, Role: claims.Role}, nil
}
