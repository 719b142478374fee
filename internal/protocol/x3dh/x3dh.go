package x3dh

import (
	"bytes"
	"errors"
	"fmt"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/util/memzero"
)

// ErrBadSPK is returned when the signed prekey signature does not verify.
var ErrBadSPK = errors.New("signed prekey signature invalid")

const rootKeyInfo = "sealkit-x3dh"

// InitiatorRoot verifies the peer bundle, generates an ephemeral key and derives the
// root key. It returns the prekey identifiers used and the ephemeral public key the
// responder needs.
func InitiatorRoot(
	id domain.Identity,
	bundle domain.PreKeyBundle,
) (
	rootKey []byte,
	spkID domain.SignedPreKeyID,
	opkID domain.OneTimePreKeyID,
	ephPub domain.X25519Public,
	err error,
) {
	if !VerifySPK(bundle) {
		return nil, "", "", ephPub, ErrBadSPK
	}
	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, "", "", ephPub, err
	}
	defer memzero.Key32((*[32]byte)(&ephPriv))

	var peerOPK *domain.X25519Public
	if len(bundle.OneTimePreKeys) > 0 {
		opk := bundle.OneTimePreKeys[0]
		peerOPK, opkID = &opk.Pub, opk.ID
	}

	rootKey, err = InitiatorRootKey(id.XPriv, ephPriv, bundle.IdentityKey, bundle.SignedPreKey, peerOPK)
	if err != nil {
		return nil, "", "", ephPub, err
	}
	return rootKey, bundle.SignedPreKeyID, opkID, ephPub, nil
}

// ResponderRoot recomputes the initiator's root key from the prekey message.
func ResponderRoot(
	id domain.Identity,
	spkPriv domain.X25519Private,
	opkPriv *domain.X25519Private,
	pm domain.PreKeyMessage,
) ([]byte, error) {
	dh1, err := crypto.DH(spkPriv, pm.InitiatorIdentityKey) // DH(SPKB, IKA)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(id.XPriv, pm.EphemeralKey) // DH(IKB, EKA)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(spkPriv, pm.EphemeralKey) // DH(SPKB, EKA)
	if err != nil {
		return nil, err
	}

	transcript := make([]byte, 0, 32*4)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)

	if opkPriv != nil {
		dh4, err := crypto.DH(*opkPriv, pm.EphemeralKey) // DH(OPKB, EKA)
		if err != nil {
			return nil, err
		}
		transcript = append(transcript, dh4[:]...)
	}
	return deriveRoot(transcript)
}

// InitiatorRootKey derives the root key for the initiator from raw key material.
func InitiatorRootKey(
	ourIDPriv domain.X25519Private,
	ourEphPriv domain.X25519Private,
	peerIDPub domain.X25519Public,
	peerSPK domain.X25519Public,
	peerOPK *domain.X25519Public,
) ([]byte, error) {
	dh1, err := crypto.DH(ourIDPriv, peerSPK) // DH(IKA, SPKB)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(ourEphPriv, peerIDPub) // DH(EKA, IKB)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(ourEphPriv, peerSPK) // DH(EKA, SPKB)
	if err != nil {
		return nil, err
	}

	transcript := make([]byte, 0, 32*4)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)

	if peerOPK != nil {
		dh4, err := crypto.DH(ourEphPriv, *peerOPK) // DH(EKA, OPKB)
		if err != nil {
			return nil, err
		}
		transcript = append(transcript, dh4[:]...)
	}
	return deriveRoot(transcript)
}

// VerifySPK checks that the signed pre-key of b was signed by the device that
// publishes it.
func VerifySPK(b domain.PreKeyBundle) bool {
	msg := domain.SignedPreKeyMessage(b.UserID, b.DeviceID, b.SignedPreKeyID, b.SignedPreKey)
	return crypto.VerifyEd25519(b.SigningKey, msg, b.SignedPreKeySignature)
}

// deriveRoot runs HKDF over F || transcript, F being 32 0xFF bytes, and wipes the input.
func deriveRoot(transcript []byte) ([]byte, error) {
	ikm := append(bytes.Repeat([]byte{0xFF}, 32), transcript...)
	defer memzero.Zero(ikm, transcript)

	rk, err := crypto.HKDF(ikm, make([]byte, 32), []byte(rootKeyInfo), 32)
	if err != nil {
		return nil, fmt.Errorf("x3dh root: %w", err)
	}
	return rk, nil
}
