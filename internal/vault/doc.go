// Package vault persists the account document as a single password-sealed
// file.
//
// # Lifecycle
//
// Create writes a new, initialized document and fails if anything is already
// at the path. Open derives the key from the password, decrypts the file and
// checks the initialized flag; every failure is reported as
// common.ErrInvalidPasswordOrCorrupt so callers cannot tell a wrong password
// from a damaged file. Rekey re-seals the document under a new password.
//
// # Durability
//
// Every mutation (Update, Set, Delete) re-seals and rewrites the whole file
// before returning, under a mutex, so concurrent callers never interleave
// writes and a crash never loses a confirmed change. Files are replaced by
// write-temp, fsync, rename.
//
// # Rekey and recovery
//
// Rekey keeps a copy of the old file at <path>.bak until the new file has been
// written and re-opened with the new password. Open repairs the states a crash
// can leave behind: a lone backup is restored, and a backup that opens with
// the supplied password when the primary does not is promoted back.
package vault
