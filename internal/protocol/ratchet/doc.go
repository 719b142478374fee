// Package ratchet advances the Double Ratchet of a pairwise channel.
//
// The X3DH root key seeds the state. Every message takes a fresh key from the
// sending chain, and every new ratchet public key seen from the peer triggers a DH
// step that replaces both chains. Keys of messages that arrive out of order are kept
// in RatchetState.SkippedKeys, bounded per state.
//
// A RatchetState belongs to one conversation and must not be used concurrently; the
// message service serialises access.
package ratchet
