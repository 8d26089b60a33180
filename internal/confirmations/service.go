// Package confirmations lists and answers pending trade and market
// confirmations for a stored account.
//
// Every request is signed with a key derived from the identity secret and
// the current time, so keys are computed per request and never reused. When
// Steam reports the web session as logged out the service renews it once
// through the Renewer and retries; a second logout is surfaced as
// common.ErrReauthenticationRequired.
package confirmations

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/thunder/internal/accounts"
	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/guard"
	"github.com/dmitrijs2005/thunder/internal/logging"
	"github.com/dmitrijs2005/thunder/internal/models"
	"github.com/dmitrijs2005/thunder/internal/steam"
	"github.com/google/uuid"
)

// Renewer refreshes an account's web session; *session.Manager implements it.
type Renewer interface {
	RenewWithToken(ctx context.Context, id64 string) error
}

type Service struct {
	store   *accounts.Store
	api     steam.Confirmations
	renewer Renewer
	logger  logging.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store *accounts.Store, api steam.Confirmations, renewer Renewer, opts ...Option) *Service {
	s := &Service{
		store:   store,
		api:     api,
		renewer: renewer,
		logger:  logging.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List returns a snapshot of the confirmations pending for id64.
func (s *Service) List(ctx context.Context, id64 string) ([]steam.Confirmation, error) {
	var out []steam.Confirmation
	err := s.withSession(ctx, id64, func(acc models.Account) error {
		req, err := s.sign(acc, guard.TagConf)
		if err != nil {
			return err
		}
		out, err = s.api.ListConfirmations(ctx, identity(acc), req)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "confirmations listed", "id64", id64, "count", len(out))
	return out, nil
}

// Respond accepts or declines a single confirmation. Answering one that was
// already resolved is reported by Steam as an ordinary error.
func (s *Service) Respond(ctx context.Context, id64 string, ref steam.ConfirmationRef, accept bool) error {
	tag := guard.TagCancel
	if accept {
		tag = guard.TagAllow
	}

	err := s.withSession(ctx, id64, func(acc models.Account) error {
		// ajaxop takes a single k, signed with the op tag; no conf key is sent.
		req, err := s.sign(acc, tag)
		if err != nil {
			return err
		}
		return s.api.RespondConfirmation(ctx, identity(acc), ref, req, accept)
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "confirmation answered", "id64", id64, "id", ref.ID, "accept", accept)
	return nil
}

// AcceptAll lists the pending confirmations and accepts them in a single
// batched request. It returns how many were accepted.
func (s *Service) AcceptAll(ctx context.Context, id64 string) (int, error) {
	var n int
	err := s.withSession(ctx, id64, func(acc models.Account) error {
		who := identity(acc)

		listReq, err := s.sign(acc, guard.TagConf)
		if err != nil {
			return err
		}
		confs, err := s.api.ListConfirmations(ctx, who, listReq)
		if err != nil {
			return err
		}
		if len(confs) == 0 {
			return nil
		}

		refs := make([]steam.ConfirmationRef, len(confs))
		for i, c := range confs {
			refs[i] = steam.ConfirmationRef{ID: c.ID, Nonce: c.Nonce}
		}

		allowReq, err := s.sign(acc, guard.TagAllow)
		if err != nil {
			return err
		}
		if err := s.api.AcceptAllConfirmations(ctx, who, refs, allowReq); err != nil {
			return err
		}
		n = len(refs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "confirmations accepted", "id64", id64, "count", n)
	return n, nil
}

// withSession runs fn with the account's current session. A missing or
// logged-out session triggers exactly one renewal.
func (s *Service) withSession(ctx context.Context, id64 string, fn func(acc models.Account) error) error {
	acc, err := s.account(id64)
	if err != nil {
		return err
	}

	renewed := false
	if len(acc.Cookies) == 0 {
		if acc, err = s.renew(ctx, id64); err != nil {
			return err
		}
		renewed = true
	}

	err = fn(acc)
	if !steam.IsKind(err, steam.KindNotLoggedIn) {
		return err
	}
	if renewed {
		return fmt.Errorf("%w: %w", common.ErrReauthenticationRequired, err)
	}

	s.logger.Info(ctx, "web session expired, renewing", "id64", id64)
	if acc, err = s.renew(ctx, id64); err != nil {
		return err
	}

	err = fn(acc)
	if steam.IsKind(err, steam.KindNotLoggedIn) {
		return fmt.Errorf("%w: %w", common.ErrReauthenticationRequired, err)
	}
	return err
}

func (s *Service) renew(ctx context.Context, id64 string) (models.Account, error) {
	if err := s.renewer.RenewWithToken(ctx, id64); err != nil {
		return models.Account{}, err
	}
	return s.account(id64)
}

func (s *Service) account(id64 string) (models.Account, error) {
	acc, ok := s.store.GetFull(id64)
	if !ok {
		return models.Account{}, common.ErrAccountNotFound
	}
	if acc.IdentitySecret == "" {
		return models.Account{}, common.ErrNotEnrolling
	}
	return acc, nil
}

func (s *Service) sign(acc models.Account, tag string) (steam.SignedRequest, error) {
	t := s.now().Unix()
	key, err := guard.ConfirmationKey(acc.IdentitySecret, t, tag)
	if err != nil {
		return steam.SignedRequest{}, err
	}
	return steam.SignedRequest{Time: t, Key: key, Tag: tag}, nil
}

func identity(acc models.Account) steam.Identity {
	return steam.Identity{
		SteamID:  acc.ID64,
		DeviceID: deviceID(acc),
		Cookies:  acc.Cookies,
	}
}

// deviceID falls back to a stable id derived from the Steam id for records
// that predate stored device ids.
func deviceID(acc models.Account) string {
	if acc.DeviceID != "" {
		return acc.DeviceID
	}
	return "android:" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(acc.ID64)).String()
}
