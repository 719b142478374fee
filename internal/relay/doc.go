// Package relay is the HTTP client of the sealkit key server, and the wire contract
// (routes, authentication headers, error bodies) the server implements.
//
// The key server stores public device keys, sigchains, wrapped session and group
// keys, pre-key bundles and per-device channel message queues. It never sees a
// private key or a plaintext.
//
// All requests are JSON over HTTP and accept a context for cancellation and
// deadlines. Device requests carry an Ed25519 request signature (see SignRequest).
// Transient failures (network errors, 5xx, 429) are retried with exponential backoff;
// every other non-2xx status is returned at once as an *APIError.
package relay
