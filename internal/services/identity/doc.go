// Package identity manages the account held by an SDK instance: creation, device
// renewal, extra devices, identity export and import, and sigchain inspection.
//
// Every change to a user's devices is recorded as a sigchain entry signed locally and
// verified against the chain the key server returns. Renewed encryption keys are kept
// as retired keys so keys wrapped before the renewal stay readable.
package identity
