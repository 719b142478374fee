package crypto

import (
	"github.com/btcsuite/btcutil/base58"
	"github.com/zeebo/blake3"
)

// Fingerprint returns a short base58 fingerprint of one or more public keys.
//
// It hashes the concatenation with BLAKE3 and keeps 16 bytes.
func Fingerprint(pubs ...[]byte) string {
	h := blake3.New()
	for _, p := range pubs {
		_, _ = h.Write(p)
	}
	sum := h.Sum(nil)
	return base58.Encode(sum[:16])
}
