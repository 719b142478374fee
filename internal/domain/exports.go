package domain

import (
	interfaces "sealkit/internal/domain/interfaces"
	types "sealkit/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID                = types.UserID
	DeviceID              = types.DeviceID
	GroupID               = types.GroupID
	SessionID             = types.SessionID
	Fingerprint           = types.Fingerprint
	SignedPreKeyID        = types.SignedPreKeyID
	OneTimePreKeyID       = types.OneTimePreKeyID
	ConversationID        = types.ConversationID
	Identity              = types.Identity
	GeneratedPrivateKeys  = types.GeneratedPrivateKeys
	DevicePublic          = types.DevicePublic
	SubIdentity           = types.SubIdentity
	RetiredKey            = types.RetiredKey
	AccountInfo           = types.AccountInfo
	OneTimePreKeyPair     = types.OneTimePreKeyPair
	SignedPreKey          = types.SignedPreKey
	OneTimePreKeyPublic   = types.OneTimePreKeyPublic
	PreKeyBundle          = types.PreKeyBundle
	PreKeyMessage         = types.PreKeyMessage
	ChannelMessage        = types.ChannelMessage
	DecryptedMessage      = types.DecryptedMessage
	RatchetHeader         = types.RatchetHeader
	RatchetState          = types.RatchetState
	Conversation          = types.Conversation
	Channel               = types.Channel
	RecipientRights       = types.RecipientRights
	RecipientWithRights   = types.RecipientWithRights
	RetrievalFlow         = types.RetrievalFlow
	RetrievalDetails      = types.RetrievalDetails
	EncryptionSession     = types.EncryptionSession
	WrappedKey            = types.WrappedKey
	ActionStatus          = types.ActionStatus
	RevokeResult          = types.RevokeResult
	MassReencryptOptions  = types.MassReencryptOptions
	MassReencryptResponse = types.MassReencryptResponse
	DeviceMissingKeys     = types.DeviceMissingKeys
	Group                 = types.Group
	GroupKeys             = types.GroupKeys
	SigchainOp            = types.SigchainOp
	SigchainEntry         = types.SigchainEntry
	SigchainHash          = types.SigchainHash
	SigchainCheck         = types.SigchainCheck
	CreateAccountOptions  = types.CreateAccountOptions
	RenewKeysOptions      = types.RenewKeysOptions
	SubIdentityOptions    = types.SubIdentityOptions
	CreateGroupOptions    = types.CreateGroupOptions
	CreateAccountRequest  = types.CreateAccountRequest
	AddDeviceRequest      = types.AddDeviceRequest
	RenewDeviceRequest    = types.RenewDeviceRequest
	Recipient             = types.Recipient
	CreateSessionRequest  = types.CreateSessionRequest
	SessionKeyResponse    = types.SessionKeyResponse
	AddRecipientsRequest  = types.AddRecipientsRequest
	AddRecipientsResponse = types.AddRecipientsResponse
	RevokeRequest         = types.RevokeRequest
	MissingKeysResponse   = types.MissingKeysResponse
	CreateGroupRequest    = types.CreateGroupRequest
	GroupMembersRequest   = types.GroupMembersRequest
	RenewGroupKeyRequest  = types.RenewGroupKeyRequest
	GroupKeyResponse      = types.GroupKeyResponse
	BackupRecord          = types.BackupRecord
	X25519Public          = types.X25519Public
	X25519Private         = types.X25519Private
	Ed25519Public         = types.Ed25519Public
	Ed25519Private        = types.Ed25519Private
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService   = interfaces.IdentityService
	PreKeyService     = interfaces.PreKeyService
	ChannelService    = interfaces.ChannelService
	MessageService    = interfaces.MessageService
	SessionService    = interfaces.SessionService
	GroupService      = interfaces.GroupService
	BackupService     = interfaces.BackupService
	AccountAPI        = interfaces.AccountAPI
	ChannelAPI        = interfaces.ChannelAPI
	SessionAPI        = interfaces.SessionAPI
	GroupAPI          = interfaces.GroupAPI
	BackupAPI         = interfaces.BackupAPI
	AnonymousAPI      = interfaces.AnonymousAPI
	RelayClient       = interfaces.RelayClient
	IdentityStore     = interfaces.IdentityStore
	AccountStore      = interfaces.AccountStore
	PreKeyStore       = interfaces.PreKeyStore
	PreKeyBundleStore = interfaces.PreKeyBundleStore
	ChannelStore      = interfaces.ChannelStore
	RatchetStore      = interfaces.RatchetStore
	GroupKeyStore     = interfaces.GroupKeyStore
)

// Re-exported constants.
const (
	FlowCreated  = types.FlowCreated
	FlowDirect   = types.FlowDirect
	FlowViaGroup = types.FlowViaGroup

	SigchainCreate    = types.SigchainCreate
	SigchainAddDevice = types.SigchainAddDevice
	SigchainRenew     = types.SigchainRenew
	SigchainRevoke    = types.SigchainRevoke

	DefaultDeviceExpiry = types.DefaultDeviceExpiry
)

// Re-exported helpers.
var (
	DefaultRights               = types.DefaultRights
	DefaultMassReencryptOptions = types.DefaultMassReencryptOptions
	ConversationFor             = types.ConversationFor
	SignedPreKeyMessage         = types.SignedPreKeyMessage
)
