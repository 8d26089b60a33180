// Package steam defines the boundary between thunder and the Steam network.
//
// The interactive logon protocol itself lives behind Authenticator; the
// community web endpoints (profiles and mobile confirmations) are
// implemented in the community subpackage.
package steam

import (
	"context"
	"time"
)

// LogOnDetails selects one of the three logon modes: password, password
// plus guard or TOTP code, or a stored refresh token.
type LogOnDetails struct {
	AccountName   string
	Password      string
	AuthCode      string // mailed guard code
	TwoFactorCode string // TOTP from the shared secret
	RefreshToken  string
}

// Event is something a logon session reports. The concrete types are
// GuardChallenge, LoggedOn, WebSession, RefreshToken and Failure.
type Event interface {
	event()
}

type GuardChallenge struct {
	Hint string // e.g. the masked e-mail domain
}

type LoggedOn struct {
	SteamID     string
	AccessToken string
}

type WebSession struct {
	Cookies []string
}

type RefreshToken struct {
	Token string
}

type Failure struct {
	Err error
}

func (GuardChallenge) event() {}
func (LoggedOn) event()       {}
func (WebSession) event()     {}
func (RefreshToken) event()   {}
func (Failure) event()        {}

// Session is one in-flight logon. Events is closed when the session ends.
type Session interface {
	Events() <-chan Event
	Close() error
}

// TwoFactorSecrets is what enabling the mobile authenticator yields.
type TwoFactorSecrets struct {
	SharedSecret   string
	IdentitySecret string
	RevocationCode string
}

type Authenticator interface {
	LogOn(ctx context.Context, details LogOnDetails) (Session, error)
	EnableTwoFactor(ctx context.Context, accessToken, deviceID string) (TwoFactorSecrets, error)
	FinalizeTwoFactor(ctx context.Context, accessToken, sharedSecret, activationCode string) error
}

type Profile struct {
	PersonaName string
	AvatarURL   string
}

type Profiles interface {
	Profile(ctx context.Context, id64 string) (Profile, error)
}

// Identity is what every confirmation request is made on behalf of.
type Identity struct {
	SteamID  string
	DeviceID string
	Cookies  []string
}

// Confirmation is one pending trade or market action.
type Confirmation struct {
	ID        string    `json:"id"`
	Nonce     string    `json:"nonce"`
	Type      int       `json:"type"`
	TypeName  string    `json:"typeName"`
	CreatorID string    `json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`
	Headline  string    `json:"headline"`
	Summary   []string  `json:"summary"`
	Icon      string    `json:"icon,omitempty"`
}

// ConfirmationRef addresses a confirmation in respond calls.
type ConfirmationRef struct {
	ID    string
	Nonce string
}

// SignedRequest carries the timestamp and HMAC key a confirmation endpoint
// is called with.
type SignedRequest struct {
	Time int64
	Key  string
	Tag  string
}

type Confirmations interface {
	ListConfirmations(ctx context.Context, who Identity, req SignedRequest) ([]Confirmation, error)
	RespondConfirmation(ctx context.Context, who Identity, ref ConfirmationRef, req SignedRequest, accept bool) error
	AcceptAllConfirmations(ctx context.Context, who Identity, refs []ConfirmationRef, req SignedRequest) error
}
