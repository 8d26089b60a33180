package steam

import "context"

// Unavailable is the Authenticator used when no logon transport is linked
// in. Every call fails with KindTransport, so flows that need a fresh logon
// report a clear error while offline features keep working.
type Unavailable struct{}

var _ Authenticator = Unavailable{}

func (Unavailable) LogOn(context.Context, LogOnDetails) (Session, error) {
	return nil, errUnavailable()
}

func (Unavailable) EnableTwoFactor(context.Context, string, string) (TwoFactorSecrets, error) {
	return TwoFactorSecrets{}, errUnavailable()
}

func (Unavailable) FinalizeTwoFactor(context.Context, string, string, string) error {
	return errUnavailable()
}

func errUnavailable() error {
	return NewError(KindTransport, "no Steam logon transport is configured")
}
