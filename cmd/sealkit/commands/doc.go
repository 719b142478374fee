// Package commands defines the sealkit CLI.
//
// Commands
//
//   - init           Create an account with a signup token
//   - info           Print the local account
//   - fingerprint    Print the identity fingerprint
//   - export/import  Move the identity between instances
//   - renew          Rotate the device keys
//   - device add     Create a sub-identity for another device
//   - reencrypt      Share every readable session key with a device
//   - backup         Save or restore the identity under a password
//   - encrypt        Seal a message or file for recipients
//   - decrypt        Open a message or file
//   - share, revoke  Manage the recipients of a session
//   - group          Create and manage groups
//   - register       Publish pre-keys for pairwise channels
//   - start-session  Open a channel with a peer device
//   - send, recv     Exchange channel messages
//   - sigchain       Print or check a user's sigchain hash
//
// # Implementation
//
// Every command opens one SDK instance on the LevelDB database under the home
// directory. The database key is wrapped by a passphrase in keystore.json; the
// passphrase comes from --passphrase, SEALKIT_PASSPHRASE or a terminal prompt.
package commands
