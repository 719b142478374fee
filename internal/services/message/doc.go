// Package message sends and receives Double Ratchet messages over pairwise channels.
//
// The first message to a peer device carries the X3DH pre-key message so the receiver
// can bootstrap its side of the conversation. Ratchet state is persisted before a
// message is sent and after one is decrypted; only processed messages are acked.
package message
