// Package prekey manages the signed pre-key and one-time pre-keys a device publishes
// so peers can open pairwise channels with it while it is offline.
package prekey
