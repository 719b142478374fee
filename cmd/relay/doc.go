// Command sealkit-relay runs an in-memory sealkit key server.
//
// The server registers accounts and devices with their sigchains, stores encryption
// sessions as keys wrapped per recipient device, enforces recipient rights, manages
// groups and their key generations, keeps password-sealed identity backups and
// relays pre-key bundles and channel messages. It never sees plaintext or private
// keys.
//
// All routes live under /api/v1. Device requests carry an Ed25519 request signature
// in the X-Sealkit-* headers; anonymous senders present an encryption token as a
// bearer token; backups are addressed by a password-derived lookup token.
//
// Configuration comes from the server section of a YAML file (see --config) and the
// SEALKIT_JWT_SECRET environment variable. All state is lost on exit.
//
//	sealkit-relay --listen :8080
//	sealkit-relay token signup --ttl 10m
package main
