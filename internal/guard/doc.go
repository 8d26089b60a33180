// Package guard derives Steam Guard material from an account's secrets.
//
// Two pure functions live here:
//
//   - LoginCode turns a shared secret and a unix time into the five-character
//     code Steam asks for at login. The code is constant for the whole
//     30-second window containing the time.
//   - ConfirmationKey turns an identity secret, a unix time and a tag
//     ("conf", "allow", "cancel") into the base64 HMAC that signs a
//     trade/market confirmation request. Keys are scoped to the second.
//
// Secrets are standard base64, padded or not. Anything else fails with
// common.ErrInvalidSecretEncoding.
package guard
