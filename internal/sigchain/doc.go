// Package sigchain builds and verifies the hash-linked, signed log of a user's key
// events.
//
// Each entry records one operation (account creation, device addition, key renewal,
// device revocation) and is signed by a device that is valid at that point of the
// chain. The hash of an entry is BLAKE3 over its deterministic CBOR encoding with the
// signature removed; every entry but the first carries the hash of its predecessor.
package sigchain
