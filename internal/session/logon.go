package session

import (
	"context"
	"slices"
	"time"

	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/steam"
)

type logonResult struct {
	steamID      string
	accessToken  string
	cookies      []string
	refreshToken string
}

type guardChallenge struct {
	hint string
}

func (g *guardChallenge) Error() string {
	return common.ErrGuardCodeRequired.Error()
}

func (g *guardChallenge) Is(target error) bool {
	return target == common.ErrGuardCodeRequired
}

// logOn runs one logon session to completion. It returns once both the
// logged-on and web-session events have fired and a refresh token has
// arrived, or the grace period after the first two has passed without one.
func (m *Manager) logOn(ctx context.Context, details steam.LogOnDetails) (logonResult, error) {
	sess, err := m.auth.LogOn(ctx, details)
	if err != nil {
		return logonResult{}, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			m.logger.Debug(ctx, "close logon session", "error", cerr)
		}
	}()

	var (
		res         logonResult
		loggedOn    bool
		haveSession bool
		grace       <-chan time.Time
	)
	events := sess.Events()

	for {
		select {
		case <-ctx.Done():
			return logonResult{}, ctx.Err()

		case <-grace:
			m.logger.Debug(ctx, "no refresh token within grace period", "grace", m.grace)
			return res, nil

		case ev, ok := <-events:
			if !ok {
				if loggedOn && haveSession {
					return res, nil
				}
				return logonResult{}, steam.NewError(steam.KindTransport, "logon session ended early")
			}

			switch e := ev.(type) {
			case steam.GuardChallenge:
				return logonResult{}, &guardChallenge{hint: e.Hint}
			case steam.Failure:
				return logonResult{}, e.Err
			case steam.LoggedOn:
				loggedOn = true
				res.steamID = e.SteamID
				res.accessToken = e.AccessToken
			case steam.WebSession:
				haveSession = true
				res.cookies = slices.Clone(e.Cookies)
			case steam.RefreshToken:
				res.refreshToken = e.Token
			}

			if loggedOn && haveSession {
				if res.refreshToken != "" {
					return res, nil
				}
				if grace == nil {
					t := time.NewTimer(m.grace)
					defer t.Stop()
					grace = t.C
				}
			}
		}
	}
}
