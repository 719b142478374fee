// Package envelope seals content with an encryption session key.
//
// An envelope is a CBOR header (version, session ID, sender, content type, nonce), the
// XChaCha20-Poly1305 ciphertext and, when the sender has an account, an Ed25519
// signature over header and ciphertext. Messages travel as text ("sk1." followed by
// base64url of the CBOR envelope); files as binary (the magic "SKF1" followed by the
// CBOR envelope). The session ID can be read from either form without any key.
package envelope
