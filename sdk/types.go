package sdk

import (
	"errors"

	"sealkit/internal/domain"
	"sealkit/internal/services/anonymous"
	"sealkit/internal/services/backup"
	"sealkit/internal/services/group"
	"sealkit/internal/services/identity"
)

// ErrClosed is returned by every call made after Close.
var ErrClosed = errors.New("sdk instance is closed")

// Errors callers test for with errors.Is.
var (
	ErrNoAccount           = domain.ErrNoAccount
	ErrAccountExists       = domain.ErrAccountExists
	ErrDeviceExpired       = domain.ErrDeviceExpired
	ErrNoAccess            = domain.ErrNoAccess
	ErrForbidden           = domain.ErrForbidden
	ErrUnknownSession      = domain.ErrUnknownSession
	ErrUnknownGroup        = domain.ErrUnknownGroup
	ErrInvalidArgument     = domain.ErrInvalidArgument
	ErrNoBackup            = backup.ErrNoBackup
	ErrStaleExport         = identity.ErrStaleExport
	ErrGroupRenewalPending = group.ErrRenewalPending
)

type (
	UserID                = domain.UserID
	DeviceID              = domain.DeviceID
	GroupID               = domain.GroupID
	SessionID             = domain.SessionID
	Fingerprint           = domain.Fingerprint
	AccountInfo           = domain.AccountInfo
	GeneratedPrivateKeys  = domain.GeneratedPrivateKeys
	SubIdentity           = domain.SubIdentity
	Recipient             = domain.RecipientWithRights
	RecipientRights       = domain.RecipientRights
	RetrievalDetails      = domain.RetrievalDetails
	RetrievalFlow         = domain.RetrievalFlow
	ActionStatus          = domain.ActionStatus
	RevokeResult          = domain.RevokeResult
	MassReencryptOptions  = domain.MassReencryptOptions
	MassReencryptResponse = domain.MassReencryptResponse
	DeviceMissingKeys     = domain.DeviceMissingKeys
	SigchainHash          = domain.SigchainHash
	SigchainCheck         = domain.SigchainCheck
	DecryptedMessage      = domain.DecryptedMessage
	CreateAccountOptions  = domain.CreateAccountOptions
	RenewKeysOptions      = domain.RenewKeysOptions
	SubIdentityOptions    = domain.SubIdentityOptions
	CreateGroupOptions    = domain.CreateGroupOptions
	BackupParams          = backup.Params
	AnonymousSession      = anonymous.Session
)

// Retrieval flows.
const (
	FlowCreated  = domain.FlowCreated
	FlowDirect   = domain.FlowDirect
	FlowViaGroup = domain.FlowViaGroup
)

// DefaultRights grants read, forward and revoke.
func DefaultRights() RecipientRights { return domain.DefaultRights() }

// DefaultMassReencryptOptions returns the options MassReencrypt uses by default.
func DefaultMassReencryptOptions() MassReencryptOptions { return domain.DefaultMassReencryptOptions() }

// DefaultBackupParams returns the production password derivation costs.
func DefaultBackupParams() BackupParams { return backup.DefaultParams() }
