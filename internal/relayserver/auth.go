package relayserver

import (
	"net/http"
	"strings"

	"sealkit/internal/domain"
	"sealkit/internal/relay"
	"sealkit/internal/token"
)

// caller is the authenticated device of a request.
type caller struct {
	user   domain.UserID
	device domain.DevicePublic
	body   []byte
}

type deviceHandler func(w http.ResponseWriter, r *http.Request, c caller)

type bearerHandler func(w http.ResponseWriter, r *http.Request, claims token.Claims, body []byte)

// authenticated checks the request signature of an active device.
func (s *Server) authenticated(h deviceHandler) http.HandlerFunc {
	return s.authenticate(h, false)
}

// authenticatedExpired also admits expired devices, so they can renew their keys.
func (s *Server) authenticatedExpired(h deviceHandler) http.HandlerFunc {
	return s.authenticate(h, true)
}

func (s *Server) authenticate(h deviceHandler, allowExpired bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			writeError(w, r, http.StatusRequestEntityTooLarge, relay.CodeBadRequest, err.Error())
			return
		}
		user := domain.UserID(r.Header.Get(relay.HeaderUser))
		deviceID := domain.DeviceID(r.Header.Get(relay.HeaderDevice))

		s.st.mu.RLock()
		var (
			dev domain.DevicePublic
			ok  bool
		)
		if acc, exists := s.st.accounts[user]; exists {
			dev, ok = acc.devices[deviceID]
		}
		s.st.mu.RUnlock()

		if !ok {
			writeError(w, r, http.StatusUnauthorized, relay.CodeUnauthorized, "unknown device")
			return
		}
		if !relay.VerifyRequest(r, dev.SigningKey, body, s.now(), s.skew) {
			writeError(w, r, http.StatusUnauthorized, relay.CodeUnauthorized, "bad request signature")
			return
		}
		if dev.Revoked || (!allowExpired && !dev.Active(s.now())) {
			writeError(w, r, http.StatusUnauthorized, relay.CodeExpired, "device revoked or expired")
			return
		}
		h(w, r, caller{user: user, device: dev, body: body})
	}
}

// bearer checks an encryption token.
func (s *Server) bearer(h bearerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			writeError(w, r, http.StatusRequestEntityTooLarge, relay.CodeBadRequest, err.Error())
			return
		}
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, r, http.StatusUnauthorized, relay.CodeUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.issuer.Verify(raw, token.PurposeEncrypt)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, relay.CodeUnauthorized, err.Error())
			return
		}
		h(w, r, claims, body)
	}
}
