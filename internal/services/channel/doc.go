// Package channel establishes X3DH channels with peer devices.
//
// A channel is the shared root key and handshake parameters a Double Ratchet
// conversation starts from. The initiator fetches the peer's pre-key bundle from the
// key server, runs X3DH and stores the result per peer device.
package channel
