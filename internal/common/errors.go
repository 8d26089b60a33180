// Package common defines the sentinel errors shared by the vault, account
// store, session manager and confirmation service, plus a few byte helpers.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Vault errors.
	ErrInvalidPasswordOrCorrupt = errors.New("invalid password or corrupted vault")
	ErrRekeyVerificationFailed  = errors.New("rekey verification failed")
	ErrTooManyAttempts          = errors.New("too many unlock attempts, try again later")

	// Store errors.
	ErrAlreadyExists    = errors.New("already exists")
	ErrAccountNotFound  = errors.New("account not found")
	ErrNoCurrentAccount = errors.New("no current account")

	// Enrollment errors.
	ErrNotEnrolling       = errors.New("account is not enrolling")
	ErrMissingMobileToken = errors.New("mobile access token missing")

	// Login errors. ErrGuardCodeRequired is a continuation signal, not a failure.
	ErrGuardCodeRequired        = errors.New("steam guard code required")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrTwoFactorAlreadyEnabled  = errors.New("two-factor authentication already enabled")
	ErrReauthenticationRequired = errors.New("reauthentication required")

	// Codec / import errors.
	ErrInvalidSecretEncoding = errors.New("invalid secret encoding")
	ErrMalformedImportFile   = errors.New("malformed import file")
)
