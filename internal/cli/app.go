package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/thunder/internal/accounts"
	"github.com/dmitrijs2005/thunder/internal/backup"
	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/config"
	"github.com/dmitrijs2005/thunder/internal/confirmations"
	"github.com/dmitrijs2005/thunder/internal/logging"
	"github.com/dmitrijs2005/thunder/internal/session"
	"github.com/dmitrijs2005/thunder/internal/steam"
	"github.com/dmitrijs2005/thunder/internal/steam/community"
	"github.com/dmitrijs2005/thunder/internal/vault"
)

const minPasswordLen = 8

var errPasswordMismatch = errors.New("passwords do not match")

// vaultOptions is a test seam for the options every vault open uses.
var vaultOptions = func(logger logging.Logger) []vault.Option {
	return []vault.Option{vault.WithLogger(logger)}
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	auth     steam.Authenticator
	web      *community.Client
	unlocker *vault.Unlocker
	mirror   *backup.Mirror

	vault    *vault.Handle
	store    *accounts.Store
	sessions *session.Manager
	confs    *confirmations.Service

	reader *bufio.Reader
	out    io.Writer
	now    func() time.Time
}

// NewApp prepares the front end; nothing touches the vault until Run.
func NewApp(ctx context.Context, cfg *config.Config, auth steam.Authenticator, logger logging.Logger) *App {
	a := &App{
		config:   cfg,
		logger:   logger,
		auth:     auth,
		web:      community.NewClient(cfg.CommunityBaseURL, cfg.HTTPTimeout, logger),
		unlocker: vault.NewUnlocker(cfg.VaultPath, cfg.UnlockBurst, cfg.UnlockInterval, vaultOptions(logger)...),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		now:      time.Now,
	}

	if cfg.Backup.Enabled() {
		m, err := backup.New(ctx, cfg.Backup, logger)
		if err != nil {
			logger.Warn(ctx, "backup mirror disabled", "error", err)
		} else {
			a.mirror = m
		}
	}
	return a
}

// Run unlocks the vault and serves commands until exit or EOF.
func (a *App) Run(ctx context.Context) error {
	if err := a.unlock(ctx); err != nil {
		return err
	}
	defer a.vault.Close()

	a.println("thunder (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(lineReader{a.reader}))
	return nil
}

// unlock creates the vault on first run, otherwise asks for the password
// until it opens or input ends.
func (a *App) unlock(ctx context.Context) error {
	if !a.unlocker.Exists() {
		a.println("No vault found at", a.config.VaultPath, "- choose a password to create one.")
		pw, err := a.newPassword()
		if err != nil {
			return err
		}
		defer common.WipeByteArray(pw)

		h, err := a.unlocker.Create(ctx, pw)
		if err != nil {
			return err
		}
		a.attach(h)
		return nil
	}

	for {
		pw, err := getPassword("Vault password", a.out)
		if err != nil {
			return err
		}
		h, err := a.unlocker.Open(ctx, pw)
		common.WipeByteArray(pw)

		switch {
		case err == nil:
			a.attach(h)
			return nil
		case errors.Is(err, common.ErrInvalidPasswordOrCorrupt), errors.Is(err, common.ErrTooManyAttempts):
			a.println(err)
		default:
			return err
		}
	}
}

func (a *App) attach(h *vault.Handle) {
	a.vault = h
	a.store = accounts.NewStore(h, a.logger)
	a.sessions = session.NewManager(a.store, a.auth,
		session.WithLogger(a.logger),
		session.WithProfiles(a.web),
		session.WithGracePeriod(a.config.RenewGracePeriod),
		session.WithClock(a.now),
	)
	a.confs = confirmations.NewService(a.store, a.web, a.sessions,
		confirmations.WithLogger(a.logger),
		confirmations.WithClock(a.now),
	)
}

// newPassword asks twice and enforces a minimum length.
func (a *App) newPassword() ([]byte, error) {
	for {
		pw, err := getPassword("New password", a.out)
		if err != nil {
			return nil, err
		}
		if len(pw) < minPasswordLen {
			common.WipeByteArray(pw)
			a.println(fmt.Sprintf("Password must be at least %d characters.", minPasswordLen))
			continue
		}

		again, err := getPassword("Repeat password", a.out)
		if err != nil {
			common.WipeByteArray(pw)
			return nil, err
		}
		match := string(pw) == string(again)
		common.WipeByteArray(again)
		if match {
			return pw, nil
		}
		common.WipeByteArray(pw)
		a.println(errPasswordMismatch)
	}
}

func (a *App) status() string {
	if a.store == nil {
		return ""
	}
	cur, ok := a.store.GetCurrentLimited()
	if !ok {
		return ""
	}
	return cur.DisplayName()
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) prompt(text string) (string, error) {
	return getSimpleText(a.reader, text, a.out)
}

func (a *App) currentID() (string, error) {
	cur, ok := a.store.GetCurrentLimited()
	if !ok {
		return "", common.ErrNoCurrentAccount
	}
	return cur.ID64, nil
}
