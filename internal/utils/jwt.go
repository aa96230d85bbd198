// Package utils issues the access tokens the API accepts.  Production
// tokens come from the identity service; these helpers serve the admin CLI
// and tests.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken builds and signs an HS256 JWT whose subject is userID
// (the caller's phone number) and whose role claim is role.
func NewAccessToken(secret, userID, role string, ttlMin int) (AccessToken, error) {
	if userID == "" {
		return AccessToken{}, errors.New("user id is required")
	}
	if ttlMin <= 0 {
		ttlMin = 15
	}
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
