package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/thunder/internal/accounts"
	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/session"
)

// Add signs in with a password, answers a guard challenge if one comes,
// enrolls the authenticator and then asks for the activation code.
func (a *App) Add(ctx context.Context) error {
	name, err := a.prompt("Steam account name")
	if err != nil {
		return err
	}
	pw, err := getPassword("Steam password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	out, err := a.sessions.Login(ctx, name, string(pw), "")
	if err != nil {
		return err
	}
	for out.CodeRequired {
		code, err := a.prompt(fmt.Sprintf("Steam Guard code sent to %s", out.Hint))
		if err != nil {
			return err
		}
		if out, err = a.sessions.Login(ctx, name, string(pw), code); err != nil {
			return err
		}
	}

	a.println("Authenticator added. Write down your recovery code and keep it safe:")
	a.println("")
	a.println("    " + out.RecoveryCode)
	a.println("")
	return a.finalize(ctx, out.ID64)
}

// Finalize resumes activation of the current account.
func (a *App) Finalize(ctx context.Context) error {
	id, err := a.currentID()
	if err != nil {
		return err
	}
	return a.finalize(ctx, id)
}

// finalize asks for activation codes until one is accepted. An empty answer
// leaves the account pending.
func (a *App) finalize(ctx context.Context, id64 string) error {
	for {
		code, err := a.prompt("Activation code from SMS or e-mail (empty to finish later)")
		if err != nil {
			return err
		}
		if code == "" {
			a.println("Activation postponed; run 'finalize' when you have the code.")
			return nil
		}

		err = a.sessions.Finalize(ctx, id64, code)
		if err == nil {
			a.println("Authenticator activated.")
			return nil
		}
		if errors.Is(err, common.ErrNotEnrolling) || errors.Is(err, common.ErrMissingMobileToken) ||
			errors.Is(err, common.ErrAccountNotFound) {
			return err
		}
		a.println("Activation failed:", err)
	}
}

// Import accepts either an maFile or a file written by 'export'.
func (a *App) Import(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var id string
	if _, perr := session.ParseMaFile(data); perr == nil {
		id, err = a.sessions.ImportMaFile(ctx, path)
	} else {
		var rec accounts.ExportedSecrets
		if jerr := json.Unmarshal(data, &rec); jerr != nil || rec.ID64 == "" {
			return perr
		}
		id, err = a.sessions.ImportFromExportedSecrets(ctx, rec)
	}
	if err != nil {
		return err
	}

	a.println("Imported", id)
	return nil
}

func (a *App) Export(ctx context.Context) error {
	pw, err := getPassword("Vault password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	out, err := a.store.ExportCurrent(ctx, pw)
	if err != nil {
		return err
	}
	a.println(string(out))
	return nil
}

// Renew tries the stored refresh token and falls back to asking for the
// Steam password.
func (a *App) Renew(ctx context.Context) error {
	id, err := a.currentID()
	if err != nil {
		return err
	}
	if err := a.renew(ctx, id); err != nil {
		return err
	}
	a.println("Session renewed.")
	return nil
}

func (a *App) renew(ctx context.Context, id64 string) error {
	err := a.sessions.RenewWithToken(ctx, id64)
	if !errors.Is(err, common.ErrReauthenticationRequired) {
		return err
	}
	a.println("Steam needs you to sign in again.")
	return a.renewWithPassword(ctx, id64)
}

func (a *App) renewWithPassword(ctx context.Context, id64 string) error {
	pw, err := getPassword("Steam password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)
	return a.sessions.RenewWithPassword(ctx, id64, string(pw))
}
