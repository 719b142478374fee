package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/curve25519"

	"sealkit/internal/domain"
)

// GenerateX25519 returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateX25519() (priv domain.X25519Private, pub domain.X25519Public, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return
	}
	clamp(&priv)
	pub, err = X25519PublicFromPrivate(priv)
	return
}

// X25519PublicFromPrivate derives the public key for priv.
func X25519PublicFromPrivate(priv domain.X25519Private) (pub domain.X25519Public, err error) {
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return pub, err
	}
	copy(pub[:], pb)
	return pub, nil
}

// DH computes X25519 Diffie–Hellman.
func DH(priv domain.X25519Private, pub domain.X25519Public) (out [32]byte, err error) {
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, err
	}
	copy(out[:], secret)
	return out, nil
}

// GeneratePrivateKeys returns a fresh encryption and signing key pair set.
func GeneratePrivateKeys() (domain.GeneratedPrivateKeys, error) {
	xPriv, xPub, err := GenerateX25519()
	if err != nil {
		return domain.GeneratedPrivateKeys{}, err
	}
	edPriv, edPub, err := GenerateEd25519()
	if err != nil {
		return domain.GeneratedPrivateKeys{}, err
	}
	return domain.GeneratedPrivateKeys{XPriv: xPriv, XPub: xPub, EdPriv: edPriv, EdPub: edPub}, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
