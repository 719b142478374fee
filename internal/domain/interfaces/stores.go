package interfaces

import domaintypes "sealkit/internal/domain/types"

// IdentityStore persists the long-term keys of the local device.
type IdentityStore interface {
	SaveIdentity(id domaintypes.Identity) error
	LoadIdentity() (domaintypes.Identity, bool, error)
	DeleteIdentity() error
}

// AccountStore persists which account this instance holds on which key server.
type AccountStore interface {
	SaveAccountInfo(info domaintypes.AccountInfo) error
	LoadAccountInfo() (domaintypes.AccountInfo, bool, error)
}

// PreKeyStore keeps the private halves of the pre-keys this device published.
// Consuming a one-time pre-key deletes it.
type PreKeyStore interface {
	SaveSignedPreKey(spk domaintypes.SignedPreKey) error
	LoadSignedPreKey(id domaintypes.SignedPreKeyID) (domaintypes.SignedPreKey, bool, error)
	SetCurrentSignedPreKeyID(id domaintypes.SignedPreKeyID) error
	CurrentSignedPreKeyID() (domaintypes.SignedPreKeyID, bool, error)

	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (domaintypes.OneTimePreKeyPair, bool, error)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)
}

// PreKeyBundleStore caches the last bundle this device registered.
type PreKeyBundleStore interface {
	SavePreKeyBundle(bundle domaintypes.PreKeyBundle) error
	LoadPreKeyBundle() (domaintypes.PreKeyBundle, bool, error)
}

// ChannelStore persists established X3DH channels.
type ChannelStore interface {
	SaveChannel(peer domaintypes.ConversationID, channel domaintypes.Channel) error
	LoadChannel(peer domaintypes.ConversationID) (domaintypes.Channel, bool, error)
}

// RatchetStore keeps per-peer Double-Ratchet state.
type RatchetStore interface {
	SaveConversation(peer domaintypes.ConversationID, conversation domaintypes.Conversation) error
	LoadConversation(peer domaintypes.ConversationID) (domaintypes.Conversation, bool, error)
}

// GroupKeyStore caches opened group key generations.
type GroupKeyStore interface {
	SaveGroupKeys(keys domaintypes.GroupKeys) error
	LoadGroupKeys(
		group domaintypes.GroupID,
		keyID domaintypes.DeviceID,
	) (domaintypes.GroupKeys, bool, error)
}
