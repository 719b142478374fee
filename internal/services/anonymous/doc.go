// Package anonymous encrypts for sealkit users from a sender that has no account.
//
// The application backend hands the sender an encryption token naming the users it
// may encrypt for. The token is enough to look up their devices and register a
// session whose keys are sealed anonymously; envelopes carry no sender and no
// signature. Sessions can be serialised and resumed later.
package anonymous
