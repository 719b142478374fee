package types

import "time"

// SigchainOp is the kind of key event recorded in a sigchain entry.
type SigchainOp string

const (
	SigchainCreate    SigchainOp = "create"
	SigchainAddDevice SigchainOp = "add_device"
	SigchainRenew     SigchainOp = "renew"
	SigchainRevoke    SigchainOp = "revoke"
)

// SigchainEntry is one signed, hash-linked key event of a user.
type SigchainEntry struct {
	Position      int           `json:"position" cbor:"1,keyasint"`
	Op            SigchainOp    `json:"op" cbor:"2,keyasint"`
	UserID        UserID        `json:"user_id" cbor:"3,keyasint"`
	DeviceID      DeviceID      `json:"device_id" cbor:"4,keyasint"`
	EncryptionKey X25519Public  `json:"encryption_key" cbor:"5,keyasint"`
	SigningKey    Ed25519Public `json:"signing_key" cbor:"6,keyasint"`
	Expires       int64         `json:"expires" cbor:"7,keyasint"`
	PrevHash      []byte        `json:"prev_hash,omitempty" cbor:"8,keyasint,omitempty"`
	SignerDevice  DeviceID      `json:"signer_device" cbor:"9,keyasint"`
	CreatedAt     int64         `json:"created_at" cbor:"10,keyasint"`
	Signature     []byte        `json:"signature,omitempty" cbor:"11,keyasint,omitempty"`
}

// ExpiresAt returns the device expiry carried by the entry.
func (e SigchainEntry) ExpiresAt() time.Time {
	if e.Expires == 0 {
		return time.Time{}
	}
	return time.Unix(e.Expires, 0).UTC()
}

// SigchainHash is the hash of the entry at Position.
type SigchainHash struct {
	Hash     string `json:"hash"`
	Position int    `json:"position"`
}

// SigchainCheck is the outcome of looking a hash up in a user's sigchain.
type SigchainCheck struct {
	Found        bool `json:"found"`
	Position     int  `json:"position"`
	LastPosition int  `json:"last_position"`
}
