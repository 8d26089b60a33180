package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/thunder/internal/accounts"
	"github.com/dmitrijs2005/thunder/internal/cryptox"
	"github.com/dmitrijs2005/thunder/internal/steam"
	"github.com/dmitrijs2005/thunder/internal/vault"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testID = "76561198000000001"

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSession struct {
	events chan steam.Event
	closed bool
}

// script returns a session that emits events in order. With keepOpen the
// channel is never closed, like a live connection that goes quiet.
func script(keepOpen bool, events ...steam.Event) *fakeSession {
	ch := make(chan steam.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	if !keepOpen {
		close(ch)
	}
	return &fakeSession{events: ch}
}

func (s *fakeSession) Events() <-chan steam.Event { return s.events }
func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeAuth struct {
	mu       sync.Mutex
	sessions []*fakeSession
	logOnErr error

	secrets   steam.TwoFactorSecrets
	enableErr error

	finalizeErr error

	LastDetails     []steam.LogOnDetails
	EnableCalls     int
	LastDeviceID    string
	LastEnableToken string
	FinalizeCalls   int
	LastFinalize    [3]string
}

func (f *fakeAuth) LogOn(_ context.Context, d steam.LogOnDetails) (steam.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastDetails = append(f.LastDetails, d)
	if f.logOnErr != nil {
		return nil, f.logOnErr
	}
	s := f.sessions[0]
	f.sessions = f.sessions[1:]
	return s, nil
}

func (f *fakeAuth) EnableTwoFactor(_ context.Context, accessToken, deviceID string) (steam.TwoFactorSecrets, error) {
	f.EnableCalls++
	f.LastEnableToken = accessToken
	f.LastDeviceID = deviceID
	return f.secrets, f.enableErr
}

func (f *fakeAuth) FinalizeTwoFactor(_ context.Context, accessToken, sharedSecret, code string) error {
	f.FinalizeCalls++
	f.LastFinalize = [3]string{accessToken, sharedSecret, code}
	return f.finalizeErr
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]steam.Profile
	err      error
	calls    int
}

func (f *fakeProfiles) Profile(_ context.Context, id64 string) (steam.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return steam.Profile{}, f.err
	}
	return f.profiles[id64], nil
}

func newTestManager(t *testing.T, auth *fakeAuth, opts ...Option) (*Manager, *accounts.Store) {
	t.Helper()

	h, err := vault.Create(context.Background(), filepath.Join(t.TempDir(), "config.vault"), []byte("pw"),
		vault.WithKDFParams(cryptox.KDFParams{Time: 1, Memory: 8, Threads: 1}))
	require.NoError(t, err)
	t.Cleanup(h.Close)

	orig := newDeviceID
	newDeviceID = func() string { return "android:test-device" }
	t.Cleanup(func() { newDeviceID = orig })

	store := accounts.NewStore(h, nil)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithGracePeriod(20 * time.Millisecond)}, opts...)
	return NewManager(store, auth, opts...), store
}

func refreshToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("steam-only-knows"))
	require.NoError(t, err)
	return s
}
