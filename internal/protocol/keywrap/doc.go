// Package keywrap distributes symmetric keys (session keys and group private keys) to
// devices.
//
// # Authenticated wrap
//
// The sender combines a static-static and an ephemeral-static X25519 agreement with
// the recipient's encryption key:
//
//	ikm = DH(sender, recipient) || DH(ephemeral, recipient)
//	kek = HKDF-SHA256(ikm, salt = ephemeral || recipient, info = label || transcript)
//
// The key is sealed with XChaCha20-Poly1305 under kek using a random nonce, with the
// CBOR transcript (subject, both parties, all public keys) as associated data. The
// sender then signs transcript || nonce || ciphertext with its Ed25519 key, so the
// key server cannot substitute a wrapped key of its own.
//
// # Anonymous wrap
//
// Senders without an account use a NaCl sealed box on the recipient's encryption
// key. The subject is sealed together with the key and checked on unwrap.
package keywrap
