package steam

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is the unverified content of a Steam refresh token. Steam signs
// these with a key we never see, so they are only inspected, not trusted.
type TokenInfo struct {
	SteamID   string
	ExpiresAt time.Time
}

var ErrMalformedToken = errors.New("malformed refresh token")

func InspectToken(token string) (TokenInfo, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	info := TokenInfo{SteamID: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Expired reports whether the token is past its expiry at now. Tokens with
// no expiry claim never expire locally; Steam still gets the final say.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}
