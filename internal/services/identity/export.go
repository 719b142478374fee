package identity

import (
	"time"

	"github.com/pkg/errors"

	"sealkit/internal/codec"
	"sealkit/internal/domain"
)

const exportVersion = 1

// ErrBadExport is returned for identity exports that cannot be decoded.
var ErrBadExport = errors.New("invalid identity export")

type exportedKey struct {
	XPriv domain.X25519Private `cbor:"1,keyasint"`
	XPub  domain.X25519Public  `cbor:"2,keyasint"`
}

type identityExport struct {
	Version   uint8                 `cbor:"1,keyasint"`
	ServerURL string                `cbor:"2,keyasint"`
	UserID    domain.UserID         `cbor:"3,keyasint"`
	DeviceID  domain.DeviceID       `cbor:"4,keyasint"`
	XPriv     domain.X25519Private  `cbor:"5,keyasint"`
	XPub      domain.X25519Public   `cbor:"6,keyasint"`
	EdPriv    domain.Ed25519Private `cbor:"7,keyasint"`
	EdPub     domain.Ed25519Public  `cbor:"8,keyasint"`
	Expires   int64                 `cbor:"9,keyasint,omitempty"`
	Retired   []exportedKey         `cbor:"10,keyasint,omitempty"`
}

// EncodeExport serialises id for serverURL.
func EncodeExport(serverURL string, id domain.Identity) ([]byte, error) {
	x := identityExport{
		Version:   exportVersion,
		ServerURL: serverURL,
		UserID:    id.UserID,
		DeviceID:  id.DeviceID,
		XPriv:     id.XPriv,
		XPub:      id.XPub,
		EdPriv:    id.EdPriv,
		EdPub:     id.EdPub,
	}
	if !id.DeviceExpires.IsZero() {
		x.Expires = id.DeviceExpires.Unix()
	}
	for _, k := range id.RetiredKeys {
		x.Retired = append(x.Retired, exportedKey{XPriv: k.XPriv, XPub: k.XPub})
	}
	return codec.Marshal(x)
}

// DecodeExport parses an export produced by EncodeExport.
func DecodeExport(b []byte) (serverURL string, id domain.Identity, err error) {
	var x identityExport
	if err := codec.Unmarshal(b, &x); err != nil {
		return "", domain.Identity{}, errors.Wrap(ErrBadExport, err.Error())
	}
	if x.Version != exportVersion {
		return "", domain.Identity{}, errors.Wrapf(ErrBadExport, "version %d", x.Version)
	}
	if x.UserID == "" || x.DeviceID == "" {
		return "", domain.Identity{}, errors.Wrap(ErrBadExport, "missing user or device")
	}
	id = domain.Identity{
		UserID:   x.UserID,
		DeviceID: x.DeviceID,
		XPriv:    x.XPriv,
		XPub:     x.XPub,
		EdPriv:   x.EdPriv,
		EdPub:    x.EdPub,
	}
	if x.Expires != 0 {
		id.DeviceExpires = time.Unix(x.Expires, 0).UTC()
	}
	for _, k := range x.Retired {
		id.RetiredKeys = append(id.RetiredKeys, domain.RetiredKey{XPriv: k.XPriv, XPub: k.XPub})
	}
	return x.ServerURL, id, nil
}
