package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/thunder/internal/accounts"
	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/guard"
	"github.com/dmitrijs2005/thunder/internal/models"
)

// ImportFromExportedSecrets stores an account from previously exported
// secrets. Imported accounts are considered finalized and carry no session
// material, so the first confirmation request triggers a password renewal.
func (m *Manager) ImportFromExportedSecrets(ctx context.Context, rec accounts.ExportedSecrets) (string, error) {
	if err := checkImport(rec); err != nil {
		return "", err
	}
	acc := models.Account{
		AccountName:    rec.AccountName,
		SharedSecret:   rec.SharedSecret,
		IdentitySecret: rec.IdentitySecret,
		RecoveryCode:   rec.RecoveryCode,
	}
	return m.importAccount(ctx, rec.ID64, acc)
}

// ImportMaFile imports an authenticator exported by Steam Desktop
// Authenticator and compatible tools.
func (m *Manager) ImportMaFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read import file: %w", err)
	}
	mf, err := ParseMaFile(data)
	if err != nil {
		return "", err
	}

	acc := models.Account{
		AccountName:    mf.AccountName,
		SharedSecret:   mf.SharedSecret,
		IdentitySecret: mf.IdentitySecret,
		RecoveryCode:   mf.RevocationCode,
		DeviceID:       mf.DeviceID,
		RefreshToken:   mf.Session.RefreshToken,
	}
	return m.importAccount(ctx, string(mf.Session.SteamID), acc)
}

func (m *Manager) importAccount(ctx context.Context, id64 string, acc models.Account) (string, error) {
	for _, s := range []string{acc.SharedSecret, acc.IdentitySecret} {
		if _, err := guard.DecodeSecret(s); err != nil {
			return "", err
		}
	}
	if m.store.Exists(id64) {
		return "", fmt.Errorf("account %s: %w", id64, common.ErrAlreadyExists)
	}
	if acc.DeviceID == "" {
		acc.DeviceID = newDeviceID()
	}
	acc.Meta = models.Meta{SetupComplete: true, CreatedAt: m.now().UTC()}

	if err := m.insert(ctx, id64, acc); err != nil {
		return "", err
	}
	m.logger.Info(ctx, "account imported", "id64", id64)
	return id64, nil
}

// MaFile is the JSON layout written by Steam Desktop Authenticator.
type MaFile struct {
	SharedSecret   string     `json:"shared_secret" validate:"required"`
	SerialNumber   flexString `json:"serial_number"`
	RevocationCode string     `json:"revocation_code"`
	URI            string     `json:"uri"`
	ServerTime     flexString `json:"server_time"`
	AccountName    string     `json:"account_name"`
	TokenGID       string     `json:"token_gid"`
	IdentitySecret string     `json:"identity_secret" validate:"required"`
	Secret1        string     `json:"secret_1"`
	Status         int        `json:"status"`
	DeviceID       string     `json:"device_id"`
	Session        MaSession  `json:"Session"`
}

type MaSession struct {
	SteamID      flexString `json:"SteamID" validate:"required,number"`
	AccessToken  string     `json:"AccessToken"`
	RefreshToken string     `json:"RefreshToken"`
	SessionID    string     `json:"SessionID"`
}

// ParseMaFile decodes and validates an maFile. The numeric Session.SteamID
// is kept as its exact decimal text.
func ParseMaFile(data []byte) (MaFile, error) {
	var mf MaFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return MaFile{}, fmt.Errorf("%w: %v", common.ErrMalformedImportFile, err)
	}
	if err := checkImport(mf); err != nil {
		return MaFile{}, err
	}
	return mf, nil
}

// flexString accepts either a JSON string or a JSON number. Numbers keep
// their literal text, so 64-bit ids survive without float rounding.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
