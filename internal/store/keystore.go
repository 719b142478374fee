package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	// The current supported version of the keystore file format.
	keystoreFormatVersion = 1

	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12

	// databaseKeyBytes matches the size the encrypted storage provider expects.
	databaseKeyBytes = 64
)

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or the keystore was modified.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted keystore")

	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// keystoreBlob is the on-disk JSON structure holding the wrapped database key and
// the scrypt parameters used to derive the wrapping key.
type keystoreBlob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// Keystore unlocks the database encryption key with a passphrase.
type Keystore struct {
	path    string
	n, r, p int
}

// NewKeystore returns a keystore stored at path using the default scrypt cost.
func NewKeystore(path string) *Keystore {
	n, r, p := scryptParamsDefault()
	return &Keystore{path: path, n: n, r: r, p: p}
}

// WithScryptCost overrides the scrypt N parameter. Tests use a low cost.
func (k *Keystore) WithScryptCost(n int) *Keystore {
	k.n = n
	return k
}

// Exists reports whether the keystore file is present.
func (k *Keystore) Exists() (bool, error) {
	b, err := readFile(k.path)
	return b != nil, err
}

// Unlock returns the database key, creating it on first use. A new keystore is only
// created for passphrases that pass the strength policy.
func (k *Keystore) Unlock(passphrase string) ([]byte, error) {
	b, err := readFile(k.path)
	if err != nil {
		return nil, err
	}
	if b == nil {
		if !isSecurePassphrase(passphrase) {
			return nil, ErrWeakPassphrase
		}
		dbKey := make([]byte, databaseKeyBytes)
		if _, err := rand.Read(dbKey); err != nil {
			return nil, err
		}
		if err := k.write(passphrase, dbKey); err != nil {
			return nil, err
		}
		return dbKey, nil
	}
	return k.open(passphrase, b)
}

// ChangePassphrase re-wraps the database key under next.
func (k *Keystore) ChangePassphrase(current, next string) error {
	if !isSecurePassphrase(next) {
		return ErrWeakPassphrase
	}
	b, err := readFile(k.path)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("no keystore at %s", k.path)
	}
	dbKey, err := k.open(current, b)
	if err != nil {
		return err
	}
	return k.write(next, dbKey)
}

func (k *Keystore) write(passphrase string, dbKey []byte) error {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return err
	}
	key, err := scrypt.Key([]byte(passphrase), salt[:], k.n, k.r, k.p, chacha20poly1305.KeySize)
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; salt-bound key is fresh on every write
	ct := aead.Seal(nil, nonce[:], dbKey, salt[:])

	raw, err := json.MarshalIndent(keystoreBlob{
		V:      keystoreFormatVersion,
		Salt:   salt[:],
		N:      k.n,
		R:      k.r,
		P:      k.p,
		Cipher: ct,
	}, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(k.path, raw, 0o600)
}

func (k *Keystore) open(passphrase string, b []byte) ([]byte, error) {
	var bl keystoreBlob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, err
	}
	if bl.V > keystoreFormatVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", bl.V)
	}
	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// Tunables for scrypt key derivation.
func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
