// Package session drives Steam authentication for stored accounts: first
// login with enrollment, finalization, silent and interactive renewal, and
// importing secrets produced elsewhere.
//
// An account moves through
//
//	Idle -> LoggingIn -> GuardCodeRequired -> LoggingIn -> Enrolling -> AwaitingActivation -> Finalized
//
// with the guard step only when Steam asks for a mailed code. The account
// record is first written at Enrolling, via Insert, so a guard challenge or
// a credential failure leaves storage untouched. Finalize is only possible
// once that record exists with a shared secret. Renewal runs on finalized
// (or imported) accounts and only replaces session material.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/thunder/internal/accounts"
	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/logging"
	"github.com/dmitrijs2005/thunder/internal/models"
	"github.com/dmitrijs2005/thunder/internal/steam"
	"github.com/google/uuid"
)

// DefaultGracePeriod is how long renewal waits for a refresh token that
// arrives after the logon and web session events.
const DefaultGracePeriod = time.Second

// newDeviceID is a test seam.
var newDeviceID = func() string {
	return "android:" + uuid.NewString()
}

type Manager struct {
	store    *accounts.Store
	auth     steam.Authenticator
	profiles steam.Profiles
	logger   logging.Logger
	grace    time.Duration
	now      func() time.Time
}

type Option func(*Manager)

func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) { m.grace = d }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithProfiles(p steam.Profiles) Option {
	return func(m *Manager) { m.profiles = p }
}

func NewManager(store *accounts.Store, auth steam.Authenticator, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		auth:   auth,
		logger: logging.Nop(),
		grace:  DefaultGracePeriod,
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// LoginOutcome is the result of a login step. When CodeRequired is set
// nothing was stored and the caller should retry with the guard code.
type LoginOutcome struct {
	CodeRequired bool
	Hint         string

	ID64         string
	RecoveryCode string
}

// Login signs in with a password (and guard code on the second attempt),
// enables the mobile authenticator and stores the new, not yet finalized,
// account. The recovery code must be shown to the user before Finalize.
func (m *Manager) Login(ctx context.Context, accountName, password, guardCode string) (LoginOutcome, error) {
	log := m.logger.With("account", accountName)

	res, err := m.logOn(ctx, steam.LogOnDetails{
		AccountName: accountName,
		Password:    password,
		AuthCode:    guardCode,
	})
	var gc *guardChallenge
	if errors.As(err, &gc) {
		log.Info(ctx, "guard code requested")
		return LoginOutcome{CodeRequired: true, Hint: gc.hint}, nil
	}
	if err != nil {
		log.Warn(ctx, "login failed", "error", err)
		return LoginOutcome{}, classify(err)
	}

	if m.store.Exists(res.steamID) {
		return LoginOutcome{}, fmt.Errorf("account %s: %w", res.steamID, common.ErrAlreadyExists)
	}

	deviceID := newDeviceID()
	secrets, err := m.auth.EnableTwoFactor(ctx, res.accessToken, deviceID)
	if err != nil {
		log.Warn(ctx, "enable two-factor failed", "error", err)
		return LoginOutcome{}, classify(err)
	}

	acc := models.Account{
		AccountName:       accountName,
		SharedSecret:      secrets.SharedSecret,
		IdentitySecret:    secrets.IdentitySecret,
		RecoveryCode:      secrets.RevocationCode,
		DeviceID:          deviceID,
		RefreshToken:      res.refreshToken,
		Cookies:           res.cookies,
		MobileAccessToken: res.accessToken,
		Meta:              models.Meta{SetupComplete: false, CreatedAt: m.now().UTC()},
	}
	if err := m.insert(ctx, res.steamID, acc); err != nil {
		return LoginOutcome{}, err
	}

	log.Info(ctx, "authenticator enrolled, awaiting activation", "id64", res.steamID)
	return LoginOutcome{ID64: res.steamID, RecoveryCode: secrets.RevocationCode}, nil
}

// Finalize confirms enrollment with the activation code Steam sent by SMS
// or e-mail. A rejected code leaves the account unchanged so the caller can
// retry.
func (m *Manager) Finalize(ctx context.Context, id64, activationCode string) error {
	acc, ok := m.store.GetFull(id64)
	if !ok {
		return common.ErrAccountNotFound
	}
	if acc.SharedSecret == "" {
		return common.ErrNotEnrolling
	}
	if acc.MobileAccessToken == "" {
		return common.ErrMissingMobileToken
	}

	if err := m.auth.FinalizeTwoFactor(ctx, acc.MobileAccessToken, acc.SharedSecret, activationCode); err != nil {
		m.logger.Warn(ctx, "finalize rejected", "id64", id64, "error", err)
		return err
	}

	meta := acc.Meta
	meta.SetupComplete = true
	if _, err := m.store.Update(ctx, id64, accounts.Patch{
		Meta:              &meta,
		MobileAccessToken: accounts.String(""),
	}); err != nil {
		return err
	}

	m.logger.Info(ctx, "authenticator finalized", "id64", id64)
	return nil
}

// insert stores a new account and makes it current when nothing else is.
func (m *Manager) insert(ctx context.Context, id64 string, acc models.Account) error {
	ok, err := m.store.Insert(ctx, id64, acc)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("account %s: %w", id64, common.ErrAlreadyExists)
	}
	if _, has := m.store.GetCurrent(); !has {
		if _, err := m.store.SetCurrent(ctx, id64); err != nil {
			return err
		}
	}
	return nil
}

// classify maps capability failures onto the error taxonomy. Unknown kinds
// pass through.
func classify(err error) error {
	switch steam.KindOf(err) {
	case steam.KindInvalidPassword, steam.KindInvalidCode:
		return fmt.Errorf("%w: %w", common.ErrInvalidCredentials, err)
	case steam.KindTwoFactorAlreadyEnabled:
		return fmt.Errorf("%w: %w", common.ErrTwoFactorAlreadyEnabled, err)
	}
	return err
}
