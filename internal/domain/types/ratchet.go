package types

// RatchetHeader travels in clear next to every channel ciphertext and is bound into
// its associated data.
type RatchetHeader struct {
	DiffieHellmanPublicKey []byte `json:"dh_pub"`
	PreviousChainLength    uint32 `json:"pn"`
	MessageIndex           uint32 `json:"n"`
}

// RatchetState is one side of a Double Ratchet. Chain keys are empty until the first
// DH step in that direction. SkippedKeys holds message keys of out-of-order messages,
// keyed by ratchet public key and index.
type RatchetState struct {
	RootKey                 []byte            `json:"root_key"`
	DiffieHellmanPrivate    X25519Private     `json:"dh_priv"`
	DiffieHellmanPublic     X25519Public      `json:"dh_pub"`
	PeerDiffieHellmanPublic X25519Public      `json:"peer_dh_pub"`
	SendChainKey            []byte            `json:"send_ck,omitempty"`
	ReceiveChainKey         []byte            `json:"recv_ck,omitempty"`
	SendMessageIndex        uint32            `json:"ns"`
	ReceiveMessageIndex     uint32            `json:"nr"`
	PreviousChainLength     uint32            `json:"pn"`
	SkippedKeys             map[string][]byte `json:"skipped_keys"`
}

// Conversation is the stored channel with one peer device. PeerIdentityKey is the
// encryption key the peer proved in the X3DH handshake. A pre-key message naming
// another identity key restarts the conversation.
type Conversation struct {
	Peer            ConversationID `json:"peer"`
	PeerUser        UserID         `json:"peer_user"`
	PeerDevice      DeviceID       `json:"peer_device"`
	PeerIdentityKey X25519Public   `json:"peer_identity_key"`
	Established     int64          `json:"established"`
	State           RatchetState   `json:"state"`
}
