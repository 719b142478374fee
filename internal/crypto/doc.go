// Package crypto exposes the primitives used by sealkit.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - XChaCha20-Poly1305 sealing with random nonces and HKDF-SHA256 (Seal, Open, HKDF)
//   - Short public-key fingerprints for display (Fingerprint)
//
// # Notes
//
// Key types are the fixed-size arrays defined in internal/domain. Every call to Seal
// draws a new 24-byte nonce, so a key can be reused safely across messages.
package crypto
