package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/steam"
)

func (a *App) Confirmations(ctx context.Context) error {
	id, err := a.currentID()
	if err != nil {
		return err
	}

	var list []steam.Confirmation
	err = a.withLogin(ctx, id, func() error {
		var lerr error
		list, lerr = a.confs.List(ctx, id)
		return lerr
	})
	if err != nil {
		return err
	}

	if len(list) == 0 {
		a.println("Nothing to confirm.")
		return nil
	}
	for _, c := range list {
		line := fmt.Sprintf("%s %s  [%s] %s", c.ID, c.Nonce, c.TypeName, c.Headline)
		if len(c.Summary) > 0 {
			line += " - " + strings.Join(c.Summary, "; ")
		}
		a.println(line)
	}
	return nil
}

func (a *App) Respond(ctx context.Context, confID, nonce string, accept bool) error {
	id, err := a.currentID()
	if err != nil {
		return err
	}
	ref := steam.ConfirmationRef{ID: confID, Nonce: nonce}
	if err := a.withLogin(ctx, id, func() error { return a.confs.Respond(ctx, id, ref, accept) }); err != nil {
		return err
	}
	if accept {
		a.println("Accepted.")
	} else {
		a.println("Declined.")
	}
	return nil
}

func (a *App) AcceptAll(ctx context.Context) error {
	id, err := a.currentID()
	if err != nil {
		return err
	}
	var n int
	err = a.withLogin(ctx, id, func() error {
		var aerr error
		n, aerr = a.confs.AcceptAll(ctx, id)
		return aerr
	})
	if err != nil {
		return err
	}
	a.println(fmt.Sprintf("Accepted %d confirmation(s).", n))
	return nil
}

// withLogin runs fn and, when the silent renewal inside it was not enough,
// signs in with the Steam password and runs fn once more.
func (a *App) withLogin(ctx context.Context, id64 string, fn func() error) error {
	err := fn()
	if !errors.Is(err, common.ErrReauthenticationRequired) {
		return err
	}
	a.println("Your Steam session expired; please sign in again.")
	if err := a.renewWithPassword(ctx, id64); err != nil {
		return err
	}
	return fn()
}
