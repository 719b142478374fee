package types

import "time"

// Identity holds the long-term keys of the local device.
//
// The private halves never leave the local database except through an explicit export.
type Identity struct {
	UserID        UserID         `json:"user_id"`
	DeviceID      DeviceID       `json:"device_id"`
	XPub          X25519Public   `json:"xpub"`
	XPriv         X25519Private  `json:"xpriv"`
	EdPub         Ed25519Public  `json:"edpub"`
	EdPriv        Ed25519Private `json:"edpriv"`
	DeviceExpires time.Time      `json:"device_expires"`

	// RetiredKeys are encryption keys replaced by renewals, kept to open keys wrapped
	// before the renewal.
	RetiredKeys []RetiredKey `json:"retired_keys,omitempty"`
}

// RetiredKey is an encryption key pair a device no longer advertises.
type RetiredKey struct {
	XPriv X25519Private `json:"xpriv"`
	XPub  X25519Public  `json:"xpub"`
}

// WithEncryptionKey returns a copy of id that decrypts with the current or a retired
// key matching pub.
func (id Identity) WithEncryptionKey(pub X25519Public) (Identity, bool) {
	if id.XPub == pub {
		return id, true
	}
	for _, k := range id.RetiredKeys {
		if k.XPub == pub {
			id.XPriv, id.XPub = k.XPriv, k.XPub
			return id, true
		}
	}
	return Identity{}, false
}

// Public returns the public view of the identity.
func (id Identity) Public() DevicePublic {
	return DevicePublic{
		UserID:        id.UserID,
		DeviceID:      id.DeviceID,
		EncryptionKey: id.XPub,
		SigningKey:    id.EdPub,
		Expires:       id.DeviceExpires,
	}
}

// GeneratedPrivateKeys is key material generated ahead of the operation that consumes it.
type GeneratedPrivateKeys struct {
	XPriv  X25519Private  `json:"xpriv"`
	XPub   X25519Public   `json:"xpub"`
	EdPriv Ed25519Private `json:"edpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
}

// DevicePublic is what the key server knows about a device.
type DevicePublic struct {
	UserID        UserID        `json:"user_id"`
	DeviceID      DeviceID      `json:"device_id"`
	Name          string        `json:"name,omitempty"`
	EncryptionKey X25519Public  `json:"encryption_key"`
	SigningKey    Ed25519Public `json:"signing_key"`
	Expires       time.Time     `json:"expires"`
	Revoked       bool          `json:"revoked,omitempty"`
}

// Active reports whether the device may still receive keys at t.
func (d DevicePublic) Active(t time.Time) bool {
	return !d.Revoked && (d.Expires.IsZero() || t.Before(d.Expires))
}

// SubIdentity is the result of adding a device to the current account.
type SubIdentity struct {
	DeviceID  DeviceID `json:"device_id"`
	BackupKey []byte   `json:"backup_key"`
}
