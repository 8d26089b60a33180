package session

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/thunder/internal/accounts"
	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/guard"
	"golang.org/x/sync/errgroup"
)

const refreshConcurrency = 4

var errNoProfiles = errors.New("profile lookups are not configured")

// RefreshProfile copies the public persona name and avatar into the
// account record.
func (m *Manager) RefreshProfile(ctx context.Context, id64 string) error {
	if m.profiles == nil {
		return errNoProfiles
	}
	if !m.store.Exists(id64) {
		return common.ErrAccountNotFound
	}

	p, err := m.profiles.Profile(ctx, id64)
	if err != nil {
		m.logger.Warn(ctx, "profile lookup failed", "id64", id64, "error", err)
		return err
	}

	ok, err := m.store.Update(ctx, id64, accounts.Patch{
		PersonaName: &p.PersonaName,
		AvatarURL:   &p.AvatarURL,
	})
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrAccountNotFound
	}
	return nil
}

// RefreshAllProfiles refreshes every stored account concurrently and
// returns the first error.
func (m *Manager) RefreshAllProfiles(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)

	for _, id := range m.store.IDs() {
		g.Go(func() error {
			return m.RefreshProfile(ctx, id)
		})
	}
	return g.Wait()
}

// Code is a login code and how long it stays valid.
type Code struct {
	Code      string
	Remaining time.Duration
}

// CurrentCode returns the login code of the current account at now.
func (m *Manager) CurrentCode(now time.Time) (Code, error) {
	acc, ok := m.store.GetCurrent()
	if !ok {
		return Code{}, common.ErrNoCurrentAccount
	}
	if !acc.Meta.SetupComplete || acc.SharedSecret == "" {
		return Code{}, common.ErrNotEnrolling
	}

	code, err := guard.LoginCode(acc.SharedSecret, now.Unix())
	if err != nil {
		return Code{}, err
	}
	return Code{Code: code, Remaining: guard.Remaining(now)}, nil
}
