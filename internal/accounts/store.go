// Package accounts is the CRUD layer over the vault's account map and the
// current-account pointer.
//
// Insert never overwrites and Update never creates, so enrollment can rely
// on Insert for exactly-once account creation. Update merges top-level
// fields only: a non-nil Patch.Meta replaces the whole Meta value. Callers
// that want to change one Meta field copy the current Meta first.
package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/logging"
	"github.com/dmitrijs2005/thunder/internal/models"
	"github.com/dmitrijs2005/thunder/internal/vault"
)

// Vault is the subset of *vault.Handle the store needs.
type Vault interface {
	View(fn func(doc *models.Document) error) error
	Update(fn func(doc *models.Document) error) error
	VerifyPassword(password []byte) bool
}

var _ Vault = (*vault.Handle)(nil)

type Store struct {
	vault  Vault
	logger logging.Logger
}

func NewStore(v Vault, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{vault: v, logger: logger}
}

// Patch lists the fields to change; nil pointers are left alone.
type Patch struct {
	AccountName       *string
	PersonaName       *string
	AvatarURL         *string
	SharedSecret      *string
	IdentitySecret    *string
	RecoveryCode      *string
	DeviceID          *string
	RefreshToken      *string
	Cookies           *[]string
	MobileAccessToken *string
	Meta              *models.Meta
}

func (p Patch) apply(a *models.Account) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&a.AccountName, p.AccountName)
	set(&a.PersonaName, p.PersonaName)
	set(&a.AvatarURL, p.AvatarURL)
	set(&a.SharedSecret, p.SharedSecret)
	set(&a.IdentitySecret, p.IdentitySecret)
	set(&a.RecoveryCode, p.RecoveryCode)
	set(&a.DeviceID, p.DeviceID)
	set(&a.RefreshToken, p.RefreshToken)
	set(&a.MobileAccessToken, p.MobileAccessToken)
	if p.Cookies != nil {
		a.Cookies = slices.Clone(*p.Cookies)
	}
	if p.Meta != nil {
		a.Meta = *p.Meta
	}
}

// String returns a pointer to s, for building a Patch.
func String(s string) *string { return &s }

func (s *Store) Exists(id64 string) bool {
	var ok bool
	_ = s.vault.View(func(doc *models.Document) error {
		_, ok = doc.Accounts[id64]
		return nil
	})
	return ok
}

// Insert adds a new account. It returns false, without writing, if id64 is
// already present.
func (s *Store) Insert(ctx context.Context, id64 string, acc models.Account) (bool, error) {
	inserted := false
	err := s.vault.Update(func(doc *models.Document) error {
		if _, ok := doc.Accounts[id64]; ok {
			return nil
		}
		acc = acc.Clone()
		acc.ID64 = id64
		doc.Accounts[id64] = acc
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("insert account: %w", err)
	}
	if inserted {
		s.logger.Info(ctx, "account inserted", "id64", id64)
	}
	return inserted, nil
}

// Update applies p to an existing account. It returns false, without
// writing, if id64 is absent.
func (s *Store) Update(ctx context.Context, id64 string, p Patch) (bool, error) {
	updated := false
	err := s.vault.Update(func(doc *models.Document) error {
		acc, ok := doc.Accounts[id64]
		if !ok {
			return nil
		}
		p.apply(&acc)
		doc.Accounts[id64] = acc
		updated = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("update account: %w", err)
	}
	if updated {
		s.logger.Debug(ctx, "account updated", "id64", id64)
	}
	return updated, nil
}

// Delete removes an account and clears the current pointer if it pointed
// there. It returns false if id64 is absent.
func (s *Store) Delete(ctx context.Context, id64 string) (bool, error) {
	deleted := false
	err := s.vault.Update(func(doc *models.Document) error {
		if _, ok := doc.Accounts[id64]; !ok {
			return nil
		}
		delete(doc.Accounts, id64)
		if doc.CurrentAccountID == id64 {
			doc.CurrentAccountID = ""
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete account: %w", err)
	}
	if deleted {
		s.logger.Info(ctx, "account deleted", "id64", id64)
	}
	return deleted, nil
}

// GetFull returns the account including secrets. It must not leave the
// process boundary.
func (s *Store) GetFull(id64 string) (models.Account, bool) {
	var (
		acc models.Account
		ok  bool
	)
	_ = s.vault.View(func(doc *models.Document) error {
		acc, ok = doc.Accounts[id64]
		acc = acc.Clone()
		return nil
	})
	return acc, ok
}

func (s *Store) GetLimited(id64 string) (models.LimitedAccount, bool) {
	acc, ok := s.GetFull(id64)
	if !ok {
		return models.LimitedAccount{}, false
	}
	return acc.Limited(), true
}

// List returns limited views of every account ordered by id64.
func (s *Store) List() []models.LimitedAccount {
	var out []models.LimitedAccount
	_ = s.vault.View(func(doc *models.Document) error {
		out = make([]models.LimitedAccount, 0, len(doc.Accounts))
		for _, acc := range doc.Accounts {
			out = append(out, acc.Limited())
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.LimitedAccount) int {
		return compareID64(a.ID64, b.ID64)
	})
	return out
}

// IDs returns every stored id64, ordered.
func (s *Store) IDs() []string {
	list := s.List()
	ids := make([]string, len(list))
	for i, a := range list {
		ids[i] = a.ID64
	}
	return ids
}

// SetCurrent points the current-account pointer at id64. It returns false if
// the account does not exist.
func (s *Store) SetCurrent(ctx context.Context, id64 string) (bool, error) {
	set := false
	err := s.vault.Update(func(doc *models.Document) error {
		if _, ok := doc.Accounts[id64]; !ok {
			return nil
		}
		doc.CurrentAccountID = id64
		set = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("set current account: %w", err)
	}
	if set {
		s.logger.Debug(ctx, "current account changed", "id64", id64)
	}
	return set, nil
}

// GetCurrent resolves the current-account pointer. A missing or dangling
// pointer yields false rather than an error.
func (s *Store) GetCurrent() (models.Account, bool) {
	var (
		acc models.Account
		ok  bool
	)
	_ = s.vault.View(func(doc *models.Document) error {
		acc, ok = doc.Current()
		acc = acc.Clone()
		return nil
	})
	return acc, ok
}

func (s *Store) GetCurrentLimited() (models.LimitedAccount, bool) {
	acc, ok := s.GetCurrent()
	if !ok {
		return models.LimitedAccount{}, false
	}
	return acc.Limited(), true
}

// ExportedSecrets is the only plaintext export format. It deliberately has
// no session material.
type ExportedSecrets struct {
	ID64           string `json:"id64" validate:"required,number"`
	AccountName    string `json:"accountName"`
	SharedSecret   string `json:"sharedSecret" validate:"required"`
	IdentitySecret string `json:"identitySecret" validate:"required"`
	RecoveryCode   string `json:"recoveryCode"`
}

// ExportCurrent returns the current account's secrets as indented JSON once
// password re-opens the vault.
func (s *Store) ExportCurrent(ctx context.Context, password []byte) ([]byte, error) {
	if !s.vault.VerifyPassword(password) {
		s.logger.Warn(ctx, "secret export refused")
		return nil, common.ErrInvalidPasswordOrCorrupt
	}

	acc, ok := s.GetCurrent()
	if !ok {
		return nil, common.ErrNoCurrentAccount
	}
	if !acc.HasSecrets() {
		return nil, common.ErrNotEnrolling
	}

	s.logger.Info(ctx, "secrets exported", "id64", acc.ID64)
	return json.MarshalIndent(ExportedSecrets{
		ID64:           acc.ID64,
		AccountName:    acc.AccountName,
		SharedSecret:   acc.SharedSecret,
		IdentitySecret: acc.IdentitySecret,
		RecoveryCode:   acc.RecoveryCode,
	}, "", "  ")
}

// compareID64 orders decimal ids numerically without parsing them.
func compareID64(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}
