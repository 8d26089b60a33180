package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/thunder/internal/common"
)

func (a *App) Accounts(ctx context.Context) error {
	list := a.store.List()
	if len(list) == 0 {
		a.println("No accounts yet. Use 'add' or 'import <path>'.")
		return nil
	}

	cur, _ := a.store.GetCurrentLimited()
	for _, acc := range list {
		mark := " "
		if acc.ID64 == cur.ID64 {
			mark = "*"
		}
		state := ""
		if !acc.Meta.SetupComplete {
			state = " (awaiting activation)"
		}
		a.println(fmt.Sprintf("%s %s  %s%s", mark, acc.ID64, acc.DisplayName(), state))
	}
	return nil
}

func (a *App) Use(ctx context.Context, id64 string) error {
	ok, err := a.store.SetCurrent(ctx, id64)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrAccountNotFound
	}
	return a.Code(ctx)
}

func (a *App) Code(ctx context.Context) error {
	code, err := a.sessions.CurrentCode(a.now())
	if err != nil {
		return err
	}
	a.println(fmt.Sprintf("%s  (valid for %ds)", code.Code, int(code.Remaining.Seconds())))
	return nil
}

func (a *App) Remove(ctx context.Context, id64 string) error {
	acc, ok := a.store.GetLimited(id64)
	if !ok {
		return common.ErrAccountNotFound
	}

	a.println(fmt.Sprintf("Removing %s (%s) deletes its authenticator secrets from this vault.", acc.DisplayName(), id64))
	a.println("Without the recovery code you may lose access to the account.")
	answer, err := a.prompt("Type the account name to confirm")
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, acc.AccountName) {
		a.println("Cancelled.")
		return nil
	}

	if _, err := a.store.Delete(ctx, id64); err != nil {
		return err
	}
	a.println("Removed.")
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.sessions.RefreshAllProfiles(ctx); err != nil {
		return err
	}
	return a.Accounts(ctx)
}
