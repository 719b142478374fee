package relay

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
)

// Request authentication headers.
const (
	HeaderUser      = "X-Sealkit-User"
	HeaderDevice    = "X-Sealkit-Device"
	HeaderTimestamp = "X-Sealkit-Timestamp"
	HeaderSignature = "X-Sealkit-Signature"
	HeaderAppID     = "X-Sealkit-App"
)

// Credentials identify the device a request is sent for.
type Credentials struct {
	UserID     domain.UserID
	DeviceID   domain.DeviceID
	SigningKey domain.Ed25519Private
}

// CredentialsFunc returns the credentials of the current device, or false when the
// instance has no account yet.
type CredentialsFunc func() (Credentials, bool)

// StaticCredentials always returns c.
func StaticCredentials(c Credentials) CredentialsFunc {
	return func() (Credentials, bool) { return c, true }
}

// CanonicalRequest is the byte string a request signature covers.
func CanonicalRequest(method, path string, ts int64, body []byte) []byte {
	sum := sha256.Sum256(body)
	s := method + "\n" + path + "\n" + strconv.FormatInt(ts, 10) + "\n" +
		base64.RawURLEncoding.EncodeToString(sum[:])
	return []byte(s)
}

// SignRequest sets the authentication headers of req.
func SignRequest(req *http.Request, c Credentials, body []byte, now time.Time) {
	ts := now.Unix()
	sig := crypto.SignEd25519(c.SigningKey, CanonicalRequest(req.Method, req.URL.Path, ts, body))
	req.Header.Set(HeaderUser, string(c.UserID))
	req.Header.Set(HeaderDevice, string(c.DeviceID))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, base64.RawURLEncoding.EncodeToString(sig))
}

// VerifyRequest checks the signature headers of r against pub. body is the request
// body the server read.
func VerifyRequest(r *http.Request, pub domain.Ed25519Public, body []byte, now time.Time, skew time.Duration) bool {
	ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return false
	}
	at := time.Unix(ts, 0)
	if at.Before(now.Add(-skew)) || at.After(now.Add(skew)) {
		return false
	}
	sig, err := base64.RawURLEncoding.DecodeString(r.Header.Get(HeaderSignature))
	if err != nil {
		return false
	}
	return crypto.VerifyEd25519(pub, CanonicalRequest(r.Method, r.URL.Path, ts, body), sig)
}
