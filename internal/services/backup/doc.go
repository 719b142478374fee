// Package backup stores the identity export on the key server under a password.
//
// The export is sealed with age to a scrypt recipient derived from the password, and
// the sealed blob is filed under a lookup token derived from the user ID and the
// password with Argon2id. The key server only ever sees the token and the sealed
// blob, so it learns neither the password nor the identity.
package backup
