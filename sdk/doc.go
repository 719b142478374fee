// Package sdk is the public entry point of sealkit.
//
// An SDK instance holds one account on one key server, backed by an encrypted local
// database. It creates and retrieves encryption sessions, seals messages and files
// with them, administers groups, and exchanges pairwise ratchet messages.
//
//	s, err := sdk.New(sdk.Options{ServerURL: url, AppID: "my-app", DatabaseKey: key})
//	info, err := s.CreateAccount(ctx, sdk.CreateAccountOptions{SignupJWT: jwt})
//	sess, err := s.CreateEncryptionSession(ctx, []sdk.Recipient{{ID: "bob", Rights: sdk.DefaultRights()}}, true)
//	msg, err := sess.EncryptMessage("hello")
//
// NewAnonymous encrypts for users without holding an account, NewPasswordBackup stores
// identities under a password, and the ParseSessionIDFrom functions read session IDs
// without any key.
package sdk
