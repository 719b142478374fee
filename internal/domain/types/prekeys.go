package types

const signedPreKeyLabel = "sealkit-spk-v1|"

// SignedPreKey is the medium-term pre-key a device signs with its device signing key.
// Older signed pre-keys stay stored so late first messages can still be answered.
type SignedPreKey struct {
	ID        SignedPreKeyID `json:"id"`
	Priv      X25519Private  `json:"priv"`
	Pub       X25519Public   `json:"pub"`
	Signature []byte         `json:"signature"`
	Created   int64          `json:"created"`
}

// OneTimePreKeyPair is a one-time pre-key kept on the device until a peer uses it.
type OneTimePreKeyPair struct {
	ID   OneTimePreKeyID `json:"id"`
	Priv X25519Private   `json:"priv"`
	Pub  X25519Public    `json:"pub"`
}

// Public drops the private half.
func (p OneTimePreKeyPair) Public() OneTimePreKeyPublic {
	return OneTimePreKeyPublic{ID: p.ID, Pub: p.Pub}
}

// OneTimePreKeyPublic is the published half of a one-time pre-key.
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id"`
	Pub X25519Public    `json:"pub"`
}

// PreKeyBundle is what a device publishes so peers can open channels with it.
// IdentityKey and SigningKey are the device keys from its sigchain. A bundle fetched
// from the key server carries at most one one-time pre-key, which the server then
// forgets.
type PreKeyBundle struct {
	UserID                UserID                `json:"user_id"`
	DeviceID              DeviceID              `json:"device_id"`
	IdentityKey           X25519Public          `json:"identity_key"`
	SigningKey            Ed25519Public         `json:"signing_key"`
	SignedPreKeyID        SignedPreKeyID        `json:"signed_pre_key_id"`
	SignedPreKey          X25519Public          `json:"signed_pre_key"`
	SignedPreKeySignature []byte                `json:"signed_pre_key_signature"`
	OneTimePreKeys        []OneTimePreKeyPublic `json:"one_time_pre_keys,omitempty"`
}

// Conversation names the channel a bundle opens.
func (b PreKeyBundle) Conversation() ConversationID { return ConversationFor(b.UserID, b.DeviceID) }

// SignedPreKeyMessage is the transcript a device signs for its signed pre-key. It is
// bound to the device so a bundle cannot be replayed under another device ID.
func SignedPreKeyMessage(user UserID, device DeviceID, id SignedPreKeyID, spk X25519Public) []byte {
	out := make([]byte, 0, len(signedPreKeyLabel)+len(user)+len(device)+len(id)+3+len(spk))
	out = append(out, signedPreKeyLabel...)
	out = append(out, user...)
	out = append(out, '|')
	out = append(out, device...)
	out = append(out, '|')
	out = append(out, id...)
	out = append(out, '|')
	return append(out, spk[:]...)
}

// PreKeyMessage rides on the first channel message and lets the responder
// recompute the X3DH root key.
type PreKeyMessage struct {
	InitiatorIdentityKey X25519Public    `json:"initiator_identity_key"`
	EphemeralKey         X25519Public    `json:"ephemeral_key"`
	SignedPreKeyID       SignedPreKeyID  `json:"signed_pre_key_id"`
	OneTimePreKeyID      OneTimePreKeyID `json:"one_time_pre_key_id,omitempty"`
}
