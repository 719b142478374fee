package interfaces

import (
	"context"

	domaintypes "sealkit/internal/domain/types"
)

// IdentityService creates, renews, exports and inspects the local identity.
type IdentityService interface {
	GeneratePrivateKeys() (domaintypes.GeneratedPrivateKeys, error)
	CreateAccount(
		ctx context.Context,
		opts domaintypes.CreateAccountOptions,
	) (domaintypes.AccountInfo, error)
	CurrentAccountInfo() (*domaintypes.AccountInfo, error)
	Identity() (domaintypes.Identity, error)
	UpdateCurrentDevice(ctx context.Context) error
	PrepareRenew(keys *domaintypes.GeneratedPrivateKeys) ([]byte, error)
	RenewKeys(ctx context.Context, opts domaintypes.RenewKeysOptions) error
	CreateSubIdentity(
		ctx context.Context,
		opts domaintypes.SubIdentityOptions,
	) (domaintypes.SubIdentity, error)
	ImportIdentity(ctx context.Context, export []byte) error
	ExportIdentity() ([]byte, error)
	FingerprintIdentity() (domaintypes.Fingerprint, error)
	GetSigchainHash(
		ctx context.Context,
		user domaintypes.UserID,
		position int,
	) (domaintypes.SigchainHash, error)
	CheckSigchainHash(
		ctx context.Context,
		user domaintypes.UserID,
		hash string,
		position int,
	) (domaintypes.SigchainCheck, error)
	Heartbeat(ctx context.Context) error
}

// PreKeyService generates and assembles pre-key bundles.
type PreKeyService interface {
	GenerateAndStorePreKeys(count int) (
		domaintypes.X25519Public,
		[]domaintypes.X25519Public,
		error,
	)
	LoadPreKeyBundle() (domaintypes.PreKeyBundle, error)
	PublishPreKeys(ctx context.Context) (domaintypes.PreKeyBundle, error)
}

// ChannelService establishes or retrieves an X3DH channel with a peer device.
type ChannelService interface {
	InitiateChannel(
		ctx context.Context,
		peerUser domaintypes.UserID,
		peerDevice domaintypes.DeviceID,
	) (domaintypes.Channel, error)
	GetChannel(peer domaintypes.ConversationID) (domaintypes.Channel, bool, error)
}

// MessageService encrypts, sends, fetches and decrypts channel messages.
type MessageService interface {
	SendMessage(
		ctx context.Context,
		toUser domaintypes.UserID,
		toDevice domaintypes.DeviceID,
		plaintext []byte,
	) error
	ReceiveMessages(ctx context.Context, limit int) ([]domaintypes.DecryptedMessage, error)
}

// SessionService creates, retrieves and administers encryption sessions, and seals
// content with them.
type SessionService interface {
	CreateSession(
		ctx context.Context,
		recipients []domaintypes.RecipientWithRights,
		useCache bool,
	) (domaintypes.EncryptionSession, error)
	RetrieveSession(
		ctx context.Context,
		id domaintypes.SessionID,
		useCache bool,
		lookupGroupKey bool,
	) (domaintypes.EncryptionSession, error)
	AddRecipients(
		ctx context.Context,
		s domaintypes.EncryptionSession,
		recipients []domaintypes.RecipientWithRights,
	) (map[string]domaintypes.ActionStatus, error)
	RevokeRecipients(
		ctx context.Context,
		id domaintypes.SessionID,
		recipients []string,
	) (domaintypes.RevokeResult, error)
	RevokeAll(ctx context.Context, id domaintypes.SessionID) (domaintypes.RevokeResult, error)
	RevokeOthers(ctx context.Context, id domaintypes.SessionID) (domaintypes.RevokeResult, error)

	EncryptMessage(s domaintypes.EncryptionSession, plaintext string) (string, error)
	DecryptMessage(ctx context.Context, s domaintypes.EncryptionSession, message string) (string, error)
	EncryptFile(s domaintypes.EncryptionSession, content []byte, filename string) ([]byte, error)
	DecryptFile(
		ctx context.Context,
		s domaintypes.EncryptionSession,
		encrypted []byte,
	) (content []byte, filename string, err error)

	DevicesMissingKeys(ctx context.Context, forceLocalAccountUpdate bool) ([]domaintypes.DeviceMissingKeys, error)
	MassReencrypt(
		ctx context.Context,
		device domaintypes.DeviceID,
		opts domaintypes.MassReencryptOptions,
	) (domaintypes.MassReencryptResponse, error)
}

// GroupService administers groups and opens group key generations.
type GroupService interface {
	CreateGroup(ctx context.Context, opts domaintypes.CreateGroupOptions) (domaintypes.GroupID, error)
	AddGroupMembers(
		ctx context.Context,
		id domaintypes.GroupID,
		members []domaintypes.UserID,
		admins []domaintypes.UserID,
	) error
	RemoveGroupMembers(ctx context.Context, id domaintypes.GroupID, members []domaintypes.UserID) error
	RenewGroupKey(ctx context.Context, id domaintypes.GroupID, keys *domaintypes.GeneratedPrivateKeys) error
	SetGroupAdmins(ctx context.Context, id domaintypes.GroupID, admins []domaintypes.UserID) error
	OpenGroupKeys(
		ctx context.Context,
		id domaintypes.GroupID,
		keyID domaintypes.DeviceID,
	) (domaintypes.GroupKeys, error)
}

// BackupService stores the identity under a password.
type BackupService interface {
	SaveIdentity(ctx context.Context, user domaintypes.UserID, password string, identity []byte) error
	RetrieveIdentity(ctx context.Context, user domaintypes.UserID, password string) ([]byte, error)
	ChangeIdentityPassword(ctx context.Context, user domaintypes.UserID, current, next string) error
}
