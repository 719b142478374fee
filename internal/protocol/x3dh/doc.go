// Package x3dh derives the root key of a pairwise channel between two devices.
//
// The responder publishes a PreKeyBundle: its device encryption key, a signed
// pre-key and optionally one-time pre-keys. The signature covers the pre-key bound
// to the publishing user and device (see domain.SignedPreKeyMessage), so a bundle
// cannot be re-labelled as another device's.
//
// The initiator verifies the bundle, mixes DH(IKa,SPKb), DH(EKa,IKb), DH(EKa,SPKb)
// and, when a one-time pre-key was handed out, DH(EKa,OPKb), and runs HKDF over them.
// The responder computes the same set from the PreKeyMessage carried by the first
// channel message. Intermediate secrets are wiped once the root key is derived.
package x3dh
