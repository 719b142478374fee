// Package directory verifies the sigchains of users and groups and caches what they
// prove: which devices are active and which keys each device has held.
//
// Keys the key server hands out are only trusted when the owner's sigchain vouches
// for them, so a compromised server cannot substitute its own device keys.
package directory
