// Package token issues and verifies the HS256 JWTs the key server accepts from
// applications: signup tokens authorise account creation, encryption tokens authorise
// anonymous senders to fetch recipient keys and register sessions.
//
// Tokens are minted by the application backend, which shares the secret with the key
// server; the sealkit CLI can mint them for development.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/google/uuid"
)

// Purpose restricts what a token may be used for.
type Purpose string

const (
	PurposeSignup  Purpose = "signup"
	PurposeEncrypt Purpose = "encrypt"
)

// MinSecretSize is the shortest accepted HMAC secret.
const MinSecretSize = 32

const leeway = time.Minute

var (
	// ErrWeakSecret is returned for secrets shorter than MinSecretSize.
	ErrWeakSecret = errors.New("token secret too short")
	// ErrInvalid is returned for tokens that fail parsing, signature or claim checks.
	ErrInvalid = errors.New("invalid token")
)

// Claims are the application-specific claims of a token.
type Claims struct {
	Purpose Purpose `json:"purpose"`
	// Recipients restricts an encryption token to these users. Empty means any user.
	Recipients []string `json:"recipients,omitempty"`
}

// Allows reports whether the claims permit encrypting for user.
func (c Claims) Allows(user string) bool {
	if len(c.Recipients) == 0 {
		return true
	}
	for _, r := range c.Recipients {
		if r == user {
			return true
		}
	}
	return false
}

// Issuer mints and checks tokens for one application.
type Issuer struct {
	appID  string
	secret []byte
	now    func() time.Time
}

// NewIssuer returns an Issuer for appID keyed with secret.
func NewIssuer(appID string, secret []byte) (*Issuer, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrWeakSecret
	}
	return &Issuer{appID: appID, secret: secret, now: time.Now}, nil
}

// Issue mints a token valid for ttl.
func (i *Issuer) Issue(purpose Purpose, ttl time.Duration, recipients ...string) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: i.secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("create signer: %w", err)
	}
	now := i.now()
	std := jwt.Claims{
		ID:        uuid.NewString(),
		Issuer:    i.appID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.Signed(signer).
		Claims(std).
		Claims(Claims{Purpose: purpose, Recipients: recipients}).
		CompactSerialize()
}

// Verify checks raw and returns its claims. The token must be signed with the
// issuer's secret, issued for its application, unexpired and minted for purpose.
func (i *Issuer) Verify(raw string, purpose Purpose) (Claims, error) {
	tok, err := jwt.ParseSigned(raw)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, h := range tok.Headers {
		if h.Algorithm != string(jose.HS256) {
			return Claims{}, fmt.Errorf("%w: algorithm %s", ErrInvalid, h.Algorithm)
		}
	}
	var (
		std    jwt.Claims
		claims Claims
	)
	if err := tok.Claims(i.secret, &std, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	expected := jwt.Expected{Issuer: i.appID, Time: i.now()}
	if err := std.ValidateWithLeeway(expected, leeway); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if std.Expiry == nil {
		return Claims{}, fmt.Errorf("%w: no expiry", ErrInvalid)
	}
	if claims.Purpose != purpose {
		return Claims{}, fmt.Errorf("%w: purpose %q", ErrInvalid, claims.Purpose)
	}
	return claims, nil
}
