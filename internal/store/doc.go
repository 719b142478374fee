// Package store provides the persistence for sealkit's local data.
//
// It contains concrete implementations of the domain storage interfaces on top of a
// storage.Provider, serialising records as JSON. The provider is normally the
// encrypted wrapper around LevelDB, so every record is sealed at rest. All methods
// are concurrency-safe via internal locking.
//
// The package includes stores for:
//   - Identity keys (IdentityStore) and the account record (AccountStore)
//   - Prekeys (PreKeyStore) and the last registered bundle (BundleStore)
//   - X3DH channels (ChannelStore)
//   - Double Ratchet conversation state (RatchetStore)
//   - Opened group key generations (GroupKeyStore)
//
// Keystore is the one file-based piece: it keeps the database encryption key wrapped
// under a passphrase-derived key (scrypt) for the CLI.
package store
