// Package group administers groups and opens their key generations.
//
// A group is a shared identity on the key server. Each key generation is an X25519
// and Ed25519 key pair whose private halves are wrapped for every device of every
// member; sessions shared with the group are wrapped for the current generation.
// Generations are recorded in the group's own sigchain: the first is self-signed and
// each renewal is signed by the generation it replaces.
package group
