package relayserver

import (
	"net/http"

	"sealkit/internal/domain"
	"sealkit/internal/relay"
	"sealkit/internal/token"
)

func (s *Server) anonymousRecipients(w http.ResponseWriter, r *http.Request, claims token.Claims, body []byte) {
	var req relay.UsersRequest
	if !decode(w, r, body, &req) {
		return
	}
	ids := make([]string, 0, len(req.Users))
	for _, u := range req.Users {
		if !claims.Allows(string(u)) {
			writeError(w, r, http.StatusForbidden, relay.CodeForbidden, "token does not cover "+string(u))
			return
		}
		ids = append(ids, string(u))
	}
	s.resolve(w, r, ids)
}

func (s *Server) anonymousSession(w http.ResponseWriter, r *http.Request, claims token.Claims, body []byte) {
	var req domain.CreateSessionRequest
	if !decode(w, r, body, &req) {
		return
	}
	for i, rec := range req.Recipients {
		if !claims.Allows(rec.ID) {
			writeError(w, r, http.StatusForbidden, relay.CodeForbidden, "token does not cover "+rec.ID)
			return
		}
		// Anonymous recipients read only.
		req.Recipients[i].Rights = domain.RecipientRights{Read: true}
	}
	s.registerSession(w, r, req, "", domain.DevicePublic{})
}
