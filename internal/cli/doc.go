// Package cli is the interactive thunder front end.
//
// App.Run unlocks (or creates) the vault, wires the account store, session
// manager and confirmation service over it, and then runs a REPL until the
// user exits. Secrets reach the terminal only through the password-gated
// export command and the recovery code shown once at enrollment.
package cli
