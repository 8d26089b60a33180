package cli

import (
	"context"

	"github.com/dmitrijs2005/thunder/internal/common"
)

func (a *App) ChangePassword(ctx context.Context) error {
	cur, err := getPassword("Current vault password", a.out)
	if err != nil {
		return err
	}
	ok := a.vault.VerifyPassword(cur)
	common.WipeByteArray(cur)
	if !ok {
		return common.ErrInvalidPasswordOrCorrupt
	}

	next, err := a.newPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	if err := a.vault.Rekey(ctx, next); err != nil {
		return err
	}
	a.println("Vault password changed.")
	return nil
}

func (a *App) Backup(ctx context.Context) error {
	if a.mirror == nil {
		a.println("Backups are disabled; set backup.bucket in the config file.")
		return nil
	}
	key, err := a.mirror.Upload(ctx, a.vault)
	if err != nil {
		return err
	}
	a.println("Uploaded", key)
	return nil
}
