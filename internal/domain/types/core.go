package types

// UserID identifies an account on the key server.
type UserID string

// String returns the string form of the user identifier.
func (u UserID) String() string { return string(u) }

// DeviceID identifies one device (key pair holder) of a user or one key generation of a group.
type DeviceID string

// String returns the string form of the device identifier.
func (d DeviceID) String() string { return string(d) }

// GroupID identifies a group. Groups share the user identifier space on the key server.
type GroupID string

// String returns the string form of the group identifier.
func (g GroupID) String() string { return string(g) }

// SessionID identifies an encryption session.
type SessionID string

// String returns the string form of the session identifier.
func (s SessionID) String() string { return string(s) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// SignedPreKeyID uniquely identifies a signed pre-key.
type SignedPreKeyID string

// String returns the string form of the identifier.
func (id SignedPreKeyID) String() string { return string(id) }

// OneTimePreKeyID uniquely identifies a one-time pre-key.
type OneTimePreKeyID string

// String returns the string form of the identifier.
func (id OneTimePreKeyID) String() string { return string(id) }

// ConversationID identifies a conversation partner device.
type ConversationID string

// String returns the string form of the conversation identifier.
func (id ConversationID) String() string { return string(id) }

// ConversationFor builds the conversation identifier for a peer device.
func ConversationFor(user UserID, device DeviceID) ConversationID {
	return ConversationID(string(user) + "/" + string(device))
}
