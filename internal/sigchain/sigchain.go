package sigchain

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"sealkit/internal/codec"
	"sealkit/internal/crypto"
	"sealkit/internal/domain"
)

var (
	ErrEmpty         = errors.New("sigchain is empty")
	ErrBadPosition   = errors.New("sigchain position out of sequence")
	ErrBrokenLink    = errors.New("sigchain previous hash mismatch")
	ErrBadSignature  = errors.New("sigchain signature invalid")
	ErrUnknownSigner = errors.New("sigchain signer not valid at this position")
	ErrBadOperation  = errors.New("sigchain operation not allowed here")
)

// Hash returns the BLAKE3 hash of e without its signature.
func Hash(e domain.SigchainEntry) ([]byte, error) {
	e.Signature = nil
	raw, err := codec.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	sum := blake3.Sum256(raw)
	return sum[:], nil
}

// HashString returns the hex form of Hash(e).
func HashString(e domain.SigchainEntry) (string, error) {
	h, err := Hash(e)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h), nil
}

// Next builds and signs the entry that appends op on subject to chain. signer is the
// device authorising the event: subject itself for SigchainCreate, and the device's
// current (pre-renewal) identity for SigchainRenew.
func Next(
	chain []domain.SigchainEntry,
	op domain.SigchainOp,
	subject domain.DevicePublic,
	signer domain.Identity,
	now time.Time,
) (domain.SigchainEntry, error) {
	e := domain.SigchainEntry{
		Position:      len(chain),
		Op:            op,
		UserID:        subject.UserID,
		DeviceID:      subject.DeviceID,
		EncryptionKey: subject.EncryptionKey,
		SigningKey:    subject.SigningKey,
		SignerDevice:  signer.DeviceID,
		CreatedAt:     now.Unix(),
	}
	if !subject.Expires.IsZero() {
		e.Expires = subject.Expires.Unix()
	}
	if len(chain) > 0 {
		prev, err := Hash(chain[len(chain)-1])
		if err != nil {
			return domain.SigchainEntry{}, err
		}
		e.PrevHash = prev
	}
	if err := Sign(&e, signer.EdPriv); err != nil {
		return domain.SigchainEntry{}, err
	}
	return e, nil
}

// Sign sets the signature of e.
func Sign(e *domain.SigchainEntry, priv domain.Ed25519Private) error {
	h, err := Hash(*e)
	if err != nil {
		return err
	}
	e.Signature = crypto.SignEd25519(priv, h)
	return nil
}

// Verify checks the whole chain and returns the devices it leaves active, keyed by
// device ID.
//
// Rules: positions are contiguous from zero; the first entry is a self-signed
// SigchainCreate; each later entry links the previous hash and is signed by a device
// that is active (not revoked, not expired at the entry time). A SigchainRenew entry
// is signed by the renewed device with its previous key, expired or not.
func Verify(chain []domain.SigchainEntry) (map[domain.DeviceID]domain.DevicePublic, error) {
	if len(chain) == 0 {
		return nil, ErrEmpty
	}
	devices := make(map[domain.DeviceID]domain.DevicePublic)
	var prev []byte
	for i, e := range chain {
		if e.Position != i {
			return nil, fmt.Errorf("entry %d: %w", i, ErrBadPosition)
		}
		if e.UserID != chain[0].UserID {
			return nil, fmt.Errorf("entry %d: user %s: %w", i, e.UserID, ErrBadOperation)
		}
		if !bytes.Equal(e.PrevHash, prev) {
			return nil, fmt.Errorf("entry %d: %w", i, ErrBrokenLink)
		}
		if err := apply(devices, e, i == 0); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		h, err := Hash(e)
		if err != nil {
			return nil, err
		}
		prev = h
	}
	return devices, nil
}

func apply(devices map[domain.DeviceID]domain.DevicePublic, e domain.SigchainEntry, first bool) error {
	if first != (e.Op == domain.SigchainCreate) {
		return ErrBadOperation
	}
	h, err := Hash(e)
	if err != nil {
		return err
	}
	at := time.Unix(e.CreatedAt, 0)
	subject := domain.DevicePublic{
		UserID:        e.UserID,
		DeviceID:      e.DeviceID,
		EncryptionKey: e.EncryptionKey,
		SigningKey:    e.SigningKey,
		Expires:       e.ExpiresAt(),
	}

	switch e.Op {
	case domain.SigchainCreate:
		if e.SignerDevice != e.DeviceID {
			return ErrUnknownSigner
		}
		if !crypto.VerifyEd25519(e.SigningKey, h, e.Signature) {
			return ErrBadSignature
		}
		devices[e.DeviceID] = subject
	case domain.SigchainAddDevice:
		if _, exists := devices[e.DeviceID]; exists {
			return ErrBadOperation
		}
		if err := checkSigner(devices, e, h, at); err != nil {
			return err
		}
		devices[e.DeviceID] = subject
	case domain.SigchainRenew:
		if e.SignerDevice != e.DeviceID {
			return ErrUnknownSigner
		}
		// An expired device may still renew itself.
		if err := checkSigner(devices, e, h, time.Time{}); err != nil {
			return err
		}
		devices[e.DeviceID] = subject
	case domain.SigchainRevoke:
		if _, ok := devices[e.DeviceID]; !ok {
			return ErrBadOperation
		}
		if err := checkSigner(devices, e, h, at); err != nil {
			return err
		}
		delete(devices, e.DeviceID)
	default:
		return ErrBadOperation
	}
	return nil
}

func checkSigner(
	devices map[domain.DeviceID]domain.DevicePublic,
	e domain.SigchainEntry,
	h []byte,
	at time.Time,
) error {
	signer, ok := devices[e.SignerDevice]
	if !ok || (!at.IsZero() && !signer.Active(at)) {
		return ErrUnknownSigner
	}
	if !crypto.VerifyEd25519(signer.SigningKey, h, e.Signature) {
		return ErrBadSignature
	}
	return nil
}

// HashAt returns the hash at position, or of the last entry when position is negative.
func HashAt(chain []domain.SigchainEntry, position int) (domain.SigchainHash, error) {
	if len(chain) == 0 {
		return domain.SigchainHash{}, ErrEmpty
	}
	if position < 0 {
		position = len(chain) - 1
	}
	if position >= len(chain) {
		return domain.SigchainHash{}, ErrBadPosition
	}
	h, err := HashString(chain[position])
	if err != nil {
		return domain.SigchainHash{}, err
	}
	return domain.SigchainHash{Hash: h, Position: position}, nil
}

// Check looks hash up in chain. A non-negative position restricts the lookup to that
// entry.
func Check(chain []domain.SigchainEntry, hash string, position int) (domain.SigchainCheck, error) {
	res := domain.SigchainCheck{Position: -1, LastPosition: len(chain) - 1}
	for i, e := range chain {
		if position >= 0 && i != position {
			continue
		}
		h, err := HashString(e)
		if err != nil {
			return domain.SigchainCheck{}, err
		}
		if h == hash {
			res.Found = true
			res.Position = i
			break
		}
	}
	return res, nil
}
