package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/thunder/internal/accounts"
	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/guard"
	"github.com/dmitrijs2005/thunder/internal/models"
	"github.com/dmitrijs2005/thunder/internal/steam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshAllProfiles(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[string]steam.Profile{
		"1": {PersonaName: "One", AvatarURL: "https://a/1"},
		"2": {PersonaName: "Two", AvatarURL: "https://a/2"},
	}}
	m, store := newTestManager(t, &fakeAuth{}, WithProfiles(profiles))
	ctx := context.Background()
	for _, id := range []string{"1", "2"} {
		_, err := store.Insert(ctx, id, models.Account{AccountName: "u" + id})
		require.NoError(t, err)
	}

	require.NoError(t, m.RefreshAllProfiles(ctx))

	assert.Equal(t, 2, profiles.calls)
	one, _ := store.GetLimited("1")
	assert.Equal(t, "One", one.PersonaName)
	assert.Equal(t, "https://a/1", one.AvatarURL)
	two, _ := store.GetLimited("2")
	assert.Equal(t, "Two", two.DisplayName())
}

func TestRefreshProfile_Errors(t *testing.T) {
	ctx := context.Background()

	m, _ := newTestManager(t, &fakeAuth{})
	assert.Error(t, m.RefreshProfile(ctx, "1"), "no profile source configured")

	boom := errors.New("boom")
	m, store := newTestManager(t, &fakeAuth{}, WithProfiles(&fakeProfiles{err: boom}))
	assert.ErrorIs(t, m.RefreshProfile(ctx, "1"), common.ErrAccountNotFound)

	_, _ = store.Insert(ctx, "1", models.Account{AccountName: "u"})
	assert.ErrorIs(t, m.RefreshProfile(ctx, "1"), boom)
	assert.ErrorIs(t, m.RefreshAllProfiles(ctx), boom)
}

func TestCurrentCode(t *testing.T) {
	m, store := newTestManager(t, &fakeAuth{})
	ctx := context.Background()
	now := time.Unix(1616374841, 0)

	_, err := m.CurrentCode(now)
	assert.ErrorIs(t, err, common.ErrNoCurrentAccount)

	acc := finalized("")
	acc.Meta.SetupComplete = false
	_, _ = store.Insert(ctx, testID, acc)
	_, _ = store.SetCurrent(ctx, testID)
	_, err = m.CurrentCode(now)
	assert.ErrorIs(t, err, common.ErrNotEnrolling)

	setup := models.Meta{SetupComplete: true}
	_, err = store.Update(ctx, testID, accounts.Patch{Meta: &setup})
	require.NoError(t, err)

	code, err := m.CurrentCode(now)
	require.NoError(t, err)
	assert.Equal(t, "FCCHM", code.Code)
	assert.Equal(t, guard.Remaining(now), code.Remaining)
	assert.Equal(t, 19*time.Second, code.Remaining)
}
