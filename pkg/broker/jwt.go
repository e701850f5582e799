package broker

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The relying server verifies; the helper only needs the expiry for cache
// freshness and the password_expiry_utc attribute.
func TokenExpiry(token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := (&jwt.Parser{}).ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("decoding token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return 0, errors.New("token carries no exp claim")
	}
	return claims.ExpiresAt.Unix(), nil
}

// idTokenAccount derives the account record for an Entra ID token. The home
// account id follows the MSAL convention of <object id>.<tenant id>, with
// the subject claim as fallback.
func idTokenAccount(token string) (Account, error) {
	claims := jwt.MapClaims{}
	if _, _, err := (&jwt.Parser{}).ParseUnverified(token, claims); err != nil {
		return Account{}, fmt.Errorf("decoding id_token: %w", err)
	}

	oid, _ := claims["oid"].(string)
	tid, _ := claims["tid"].(string)
	sub, _ := claims["sub"].(string)

	homeAccountID := sub
	if oid != "" && tid != "" {
		homeAccountID = oid + "." + tid
	}
	if homeAccountID == "" {
		return Account{}, errors.New("id_token carries neither oid/tid nor sub")
	}

	username, _ := claims["preferred_username"].(string)
	if username == "" {
		username, _ = claims["email"].(string)
	}
	return Account{HomeAccountID: homeAccountID, Username: username, Realm: tid}, nil
}
