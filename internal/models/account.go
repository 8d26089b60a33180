// Package models holds the data persisted inside the encrypted vault.
package models

import (
	"slices"
	"time"
)

// Meta is account bookkeeping. It is replaced as a whole on update.
type Meta struct {
	SetupComplete bool      `json:"setupComplete"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Account is one Steam identity and its authenticator material.
//
// SharedSecret and IdentitySecret are base64 and immutable once
// Meta.SetupComplete is true. RefreshToken, Cookies and MobileAccessToken are
// session material that is replaced wholesale on every authentication.
type Account struct {
	ID64        string `json:"id64"`
	AccountName string `json:"accountName"`
	PersonaName string `json:"personaName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`

	SharedSecret   string `json:"sharedSecret,omitempty"`
	IdentitySecret string `json:"identitySecret,omitempty"`
	RecoveryCode   string `json:"recoveryCode,omitempty"`
	DeviceID       string `json:"deviceId,omitempty"`

	RefreshToken      string   `json:"refreshToken,omitempty"`
	Cookies           []string `json:"cookies,omitempty"`
	MobileAccessToken string   `json:"mobileAccessToken,omitempty"`

	Meta Meta `json:"meta"`
}

// LimitedAccount is the only account view allowed outside the vault
// boundary: no secrets, no session material.
type LimitedAccount struct {
	ID64        string `json:"id64"`
	AccountName string `json:"accountName"`
	PersonaName string `json:"personaName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Meta        Meta   `json:"meta"`
}

func (a Account) Limited() LimitedAccount {
	return LimitedAccount{
		ID64:        a.ID64,
		AccountName: a.AccountName,
		PersonaName: a.PersonaName,
		AvatarURL:   a.AvatarURL,
		Meta:        a.Meta,
	}
}

// HasSecrets reports whether enrollment has produced both secrets.
func (a Account) HasSecrets() bool {
	return a.SharedSecret != "" && a.IdentitySecret != ""
}

// HasSession reports whether there is any stored session material.
func (a Account) HasSession() bool {
	return a.RefreshToken != "" || len(a.Cookies) > 0
}

func (a Account) Clone() Account {
	a.Cookies = slices.Clone(a.Cookies)
	return a
}

// DisplayName prefers the persona name and falls back to the login handle.
func (a LimitedAccount) DisplayName() string {
	if a.PersonaName != "" {
		return a.PersonaName
	}
	return a.AccountName
}
