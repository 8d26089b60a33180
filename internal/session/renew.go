package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/thunder/internal/accounts"
	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/guard"
	"github.com/dmitrijs2005/thunder/internal/steam"
)

// RenewWithToken refreshes the account's web session using its stored
// refresh token. A missing, expired or foreign token and any rejection by
// Steam are reported as common.ErrReauthenticationRequired; transport errors
// are returned as they are.
func (m *Manager) RenewWithToken(ctx context.Context, id64 string) error {
	acc, ok := m.store.GetFull(id64)
	if !ok {
		return common.ErrAccountNotFound
	}
	if acc.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token", common.ErrReauthenticationRequired)
	}

	info, err := steam.InspectToken(acc.RefreshToken)
	switch {
	case err != nil:
		return fmt.Errorf("%w: %w", common.ErrReauthenticationRequired, err)
	case info.Expired(m.now()):
		m.logger.Info(ctx, "refresh token expired", "id64", id64, "expiresAt", info.ExpiresAt)
		return fmt.Errorf("%w: refresh token expired", common.ErrReauthenticationRequired)
	case info.SteamID != "" && info.SteamID != id64:
		return fmt.Errorf("%w: refresh token belongs to another account", common.ErrReauthenticationRequired)
	}

	return m.renew(ctx, id64, steam.LogOnDetails{RefreshToken: acc.RefreshToken})
}

// RenewWithPassword signs in interactively with the account password and a
// login code generated from the stored shared secret.
func (m *Manager) RenewWithPassword(ctx context.Context, id64, password string) error {
	acc, ok := m.store.GetFull(id64)
	if !ok {
		return common.ErrAccountNotFound
	}
	if acc.SharedSecret == "" {
		return common.ErrNotEnrolling
	}

	code, err := guard.LoginCode(acc.SharedSecret, m.now().Unix())
	if err != nil {
		return err
	}

	return m.renew(ctx, id64, steam.LogOnDetails{
		AccountName:   acc.AccountName,
		Password:      password,
		TwoFactorCode: code,
	})
}

func (m *Manager) renew(ctx context.Context, id64 string, details steam.LogOnDetails) error {
	res, err := m.logOn(ctx, details)
	if err != nil {
		m.logger.Warn(ctx, "renewal failed", "id64", id64, "error", err)
		return classifyRenewal(err)
	}

	p := accounts.Patch{Cookies: &res.cookies}
	if res.refreshToken != "" {
		p.RefreshToken = &res.refreshToken
	} else {
		m.logger.Info(ctx, "renewed without a fresh refresh token", "id64", id64)
	}

	ok, err := m.store.Update(ctx, id64, p)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrAccountNotFound
	}

	m.logger.Info(ctx, "session renewed", "id64", id64)
	return nil
}

// classifyRenewal marks failures that only a fresh sign-in can fix.
// Transport trouble, rate limits and cancellation pass through unchanged.
func classifyRenewal(err error) error {
	if errors.Is(err, common.ErrGuardCodeRequired) {
		return fmt.Errorf("%w: %w", common.ErrReauthenticationRequired, err)
	}
	switch steam.KindOf(err) {
	case steam.KindInvalidPassword, steam.KindInvalidCode, steam.KindAccessDenied,
		steam.KindExpired, steam.KindNotLoggedIn:
		return fmt.Errorf("%w: %w", common.ErrReauthenticationRequired, err)
	}
	return err
}
