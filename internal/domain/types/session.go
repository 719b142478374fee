package types

import "time"

// Channel holds the X3DH-derived root key and metadata for a peer device.
type Channel struct {
	PeerUser              UserID          `json:"peer_user"`
	PeerDevice            DeviceID        `json:"peer_device"`
	RootKey               []byte          `json:"root_key"`
	PeerSignedPreKey      X25519Public    `json:"peer_signed_pre_key"`
	PeerIdentityKey       X25519Public    `json:"peer_identity_key"`
	CreatedUTC            int64           `json:"created_utc"`
	SignedPreKeyID        SignedPreKeyID  `json:"signed_pre_key_id"`
	OneTimePreKeyID       OneTimePreKeyID `json:"one_time_pre_key_id"`
	InitiatorEphemeralKey X25519Public    `json:"initiator_ephemeral_key"`
}

// RecipientRights are the rights a recipient holds on an encryption session.
type RecipientRights struct {
	Read    bool `json:"read"`
	Forward bool `json:"forward"`
	Revoke  bool `json:"revoke"`
}

// DefaultRights grants every right.
func DefaultRights() RecipientRights {
	return RecipientRights{Read: true, Forward: true, Revoke: true}
}

// RecipientWithRights names a user or group and the rights to grant it.
type RecipientWithRights struct {
	ID     string          `json:"id"`
	Rights RecipientRights `json:"rights"`
}

// RetrievalFlow records how the key of a session was obtained.
type RetrievalFlow int

const (
	// FlowCreated means this instance created the session.
	FlowCreated RetrievalFlow = iota
	// FlowDirect means the key was wrapped for this device.
	FlowDirect
	// FlowViaGroup means the key was wrapped for a group this user belongs to.
	FlowViaGroup
)

// String returns a readable name for the flow.
func (f RetrievalFlow) String() string {
	switch f {
	case FlowCreated:
		return "created"
	case FlowDirect:
		return "direct"
	case FlowViaGroup:
		return "via_group"
	default:
		return "unknown"
	}
}

// RetrievalDetails describes how a session was retrieved.
type RetrievalDetails struct {
	Flow      RetrievalFlow `json:"flow"`
	GroupID   GroupID       `json:"group_id,omitempty"`
	FromCache bool          `json:"from_cache"`
}

// EncryptionSession is a symmetric key shared by a set of participants.
//
// Expires is the local cache expiry; the zero value means the session is not cached.
type EncryptionSession struct {
	ID           SessionID             `json:"id"`
	Key          []byte                `json:"key"`
	CreatedBy    UserID                `json:"created_by"`
	Participants []RecipientWithRights `json:"participants,omitempty"`
	Expires      time.Time             `json:"expires"`
	Retrieval    RetrievalDetails      `json:"retrieval"`
}

// WrappedKey is a symmetric key (session key or group private keys) wrapped for one
// recipient device.
type WrappedKey struct {
	Subject         string          `json:"subject"`
	RecipientUser   string          `json:"recipient_user"`
	RecipientDevice DeviceID        `json:"recipient_device"`
	RecipientKey    X25519Public    `json:"recipient_key"`
	SenderUser      UserID          `json:"sender_user,omitempty"`
	SenderDevice    DeviceID        `json:"sender_device,omitempty"`
	Ephemeral       X25519Public    `json:"ephemeral"`
	Nonce           []byte          `json:"nonce,omitempty"`
	Ciphertext      []byte          `json:"ciphertext"`
	Signature       []byte          `json:"signature,omitempty"`
	Anonymous       bool            `json:"anonymous,omitempty"`
	Rights          RecipientRights `json:"rights"`
}

// ActionStatus is the per-recipient outcome of a multi-recipient operation.
type ActionStatus struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code,omitempty"`
	Result    string `json:"result,omitempty"`
}

// RevokeResult maps each revoked recipient to its outcome.
type RevokeResult struct {
	Recipients map[string]ActionStatus `json:"recipients"`
}

// MassReencryptOptions tunes MassReencrypt.
type MassReencryptOptions struct {
	Retries                 int           `json:"retries"`
	RetrieveBatchSize       int           `json:"retrieve_batch_size"`
	WaitBetweenRetries      time.Duration `json:"wait_between_retries"`
	ForceLocalAccountUpdate bool          `json:"force_local_account_update"`
}

// DefaultMassReencryptOptions returns the defaults used when no options are given.
func DefaultMassReencryptOptions() MassReencryptOptions {
	return MassReencryptOptions{
		Retries:            3,
		RetrieveBatchSize:  1000,
		WaitBetweenRetries: 3 * time.Second,
	}
}

// MassReencryptResponse counts re-encrypted and failed sessions.
type MassReencryptResponse struct {
	Reencrypted int `json:"reencrypted"`
	Failed      int `json:"failed"`
}

// DeviceMissingKeys names a device of the current user that lacks some session keys.
type DeviceMissingKeys struct {
	DeviceID DeviceID `json:"device_id"`
	Count    int      `json:"count"`
}
