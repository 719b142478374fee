package interfaces

import (
	"context"

	domaintypes "sealkit/internal/domain/types"
)

// AccountAPI manages users, devices and sigchains on the key server.
type AccountAPI interface {
	CreateAccount(ctx context.Context, req domaintypes.CreateAccountRequest) error
	AddDevice(ctx context.Context, req domaintypes.AddDeviceRequest) error
	RenewDevice(ctx context.Context, req domaintypes.RenewDeviceRequest) error
	ListDevices(ctx context.Context, user domaintypes.UserID) ([]domaintypes.DevicePublic, error)
	GetDevice(
		ctx context.Context,
		user domaintypes.UserID,
		device domaintypes.DeviceID,
	) (domaintypes.DevicePublic, error)
	Sigchain(ctx context.Context, user domaintypes.UserID) ([]domaintypes.SigchainEntry, error)
	Heartbeat(ctx context.Context) error
}

// ChannelAPI is how pairwise channels use the relay: prekey bundles and message queues.
type ChannelAPI interface {
	RegisterPreKeyBundle(ctx context.Context, bundle domaintypes.PreKeyBundle) error
	FetchPreKeyBundle(
		ctx context.Context,
		user domaintypes.UserID,
		device domaintypes.DeviceID,
	) (domaintypes.PreKeyBundle, error)

	SendMessage(ctx context.Context, msg domaintypes.ChannelMessage) error
	FetchMessages(ctx context.Context, limit int) ([]domaintypes.ChannelMessage, error)
	AckMessages(ctx context.Context, count int) error
}

// SessionAPI stores wrapped session keys and enforces recipient rights.
type SessionAPI interface {
	ResolveRecipients(ctx context.Context, ids []string) ([]domaintypes.Recipient, error)
	CreateSession(ctx context.Context, req domaintypes.CreateSessionRequest) error
	FetchSessionKey(
		ctx context.Context,
		id domaintypes.SessionID,
		lookupGroupKey bool,
	) (domaintypes.SessionKeyResponse, error)
	AddSessionRecipients(
		ctx context.Context,
		id domaintypes.SessionID,
		req domaintypes.AddRecipientsRequest,
	) (domaintypes.AddRecipientsResponse, error)
	RevokeSessionRecipients(
		ctx context.Context,
		id domaintypes.SessionID,
		req domaintypes.RevokeRequest,
	) (domaintypes.RevokeResult, error)
	UploadSessionKeys(ctx context.Context, id domaintypes.SessionID, keys []domaintypes.WrappedKey) error
	MissingSessionKeys(
		ctx context.Context,
		device domaintypes.DeviceID,
		limit int,
	) ([]domaintypes.SessionID, error)
	DevicesMissingKeys(ctx context.Context) ([]domaintypes.DeviceMissingKeys, error)
}

// GroupAPI manages groups and their key generations.
type GroupAPI interface {
	CreateGroup(ctx context.Context, req domaintypes.CreateGroupRequest) error
	GetGroup(ctx context.Context, id domaintypes.GroupID) (domaintypes.Group, error)
	AddGroupMembers(ctx context.Context, id domaintypes.GroupID, req domaintypes.GroupMembersRequest) error
	RemoveGroupMembers(ctx context.Context, id domaintypes.GroupID, members []domaintypes.UserID) error
	RenewGroupKey(ctx context.Context, id domaintypes.GroupID, req domaintypes.RenewGroupKeyRequest) error
	SetGroupAdmins(ctx context.Context, id domaintypes.GroupID, admins []domaintypes.UserID) error
	FetchGroupKey(
		ctx context.Context,
		id domaintypes.GroupID,
		keyID domaintypes.DeviceID,
	) (domaintypes.GroupKeyResponse, error)
}

// BackupAPI stores password-sealed identities.
type BackupAPI interface {
	PutBackup(ctx context.Context, rec domaintypes.BackupRecord) error
	GetBackup(ctx context.Context, user domaintypes.UserID, lookup string) ([]byte, error)
	DeleteBackup(ctx context.Context, user domaintypes.UserID, lookup string) error
}

// AnonymousAPI is used by senders without an account, authorised by an encryption token.
type AnonymousAPI interface {
	AnonymousRecipients(
		ctx context.Context,
		token string,
		users []domaintypes.UserID,
	) ([]domaintypes.Recipient, error)
	CreateAnonymousSession(ctx context.Context, token string, req domaintypes.CreateSessionRequest) error
}

// RelayClient is everything an account holder needs from the key server.
type RelayClient interface {
	AccountAPI
	ChannelAPI
	SessionAPI
	GroupAPI
}
