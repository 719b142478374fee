// Package session creates and retrieves encryption sessions and seals content with them.
//
// A session is a random symmetric key registered on the key server, wrapped once for
// every active device of every user recipient and once for the current key generation
// of every group recipient. Recipient devices are checked against their owner's
// sigchain before a key is wrapped for them, and the sender of a retrieved key is
// checked the same way before it is unwrapped.
//
// Retrieved sessions can be kept in a TTL cache. A negative TTL caches forever and a
// zero TTL disables the cache.
package session
