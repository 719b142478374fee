// Package relayserver is an in-memory sealkit key server for development and tests.
//
// It stores accounts (devices and sigchains), groups and their key generations,
// encryption sessions (recipient rights and wrapped keys), pre-key bundles, per-device
// channel message queues and password backups. It enforces the same rules a
// production key server would: signup and encryption tokens, Ed25519 request
// signatures of active devices, sigchain continuity, session rights (read, forward,
// revoke) and group admin rules. Everything is lost when the process exits.
package relayserver
