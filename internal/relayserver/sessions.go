package relayserver

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"sealkit/internal/domain"
	"sealkit/internal/protocol/keywrap"
	"sealkit/internal/relay"
)

// checkKeys validates wrapped session keys against the recipients they may target
// and returns them as grants. sender is the zero value for anonymous uploads.
// Callers hold mu.
func (st *state) checkKeys(
	id domain.SessionID,
	keys []domain.WrappedKey,
	allowed map[string]bool,
	sender domain.DevicePublic,
) ([]keyGrant, string) {
	anonymous := sender.UserID == ""
	out := make([]keyGrant, 0, len(keys))
	for _, wk := range keys {
		if wk.Subject != keywrap.SessionSubject(id) {
			return nil, "key subject does not name this session"
		}
		if !allowed[wk.RecipientUser] {
			return nil, "key for " + wk.RecipientUser + " who is not a recipient"
		}
		d, ok := st.device(wk.RecipientUser, wk.RecipientDevice)
		if !ok || d.Revoked || d.EncryptionKey != wk.RecipientKey {
			return nil, "key for unknown or outdated device " + string(wk.RecipientDevice)
		}
		if anonymous != wk.Anonymous {
			return nil, "anonymous flag mismatch"
		}
		if !anonymous && (wk.SenderUser != sender.UserID || wk.SenderDevice != sender.DeviceID) {
			return nil, "keys must be wrapped by the calling device"
		}
		out = append(out, keyGrant{key: wk, sender: sender})
	}
	return out, ""
}

// hasRight reports whether user holds a right on sess directly or through a group
// it belongs to. Callers hold mu.
func (st *state) hasRight(sess *sessionState, user domain.UserID, pick func(domain.RecipientRights) bool) bool {
	if r, ok := sess.rights[string(user)]; ok && pick(r) {
		return true
	}
	for id, r := range sess.rights {
		if g, ok := st.groups[domain.GroupID(id)]; ok && g.group.IsMember(user) && pick(r) {
			return true
		}
	}
	return false
}

func canRead(r domain.RecipientRights) bool    { return r.Read }
func canForward(r domain.RecipientRights) bool { return r.Forward }
func canRevoke(r domain.RecipientRights) bool  { return r.Revoke }

func (s *Server) resolveRecipients(w http.ResponseWriter, r *http.Request, c caller) {
	var req relay.ResolveRequest
	if !decode(w, r, c.body, &req) {
		return
	}
	s.resolve(w, r, req.IDs)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, ids []string) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	out := make([]domain.Recipient, 0, len(ids))
	for _, id := range ids {
		rec, ok := s.st.recipient(id, s.now)
		if !ok {
			writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "unknown recipient "+id)
			return
		}
		out = append(out, rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request, c caller) {
	var req domain.CreateSessionRequest
	if !decode(w, r, c.body, &req) {
		return
	}
	s.registerSession(w, r, req, c.user, c.device)
}

func (s *Server) registerSession(
	w http.ResponseWriter,
	r *http.Request,
	req domain.CreateSessionRequest,
	creator domain.UserID,
	sender domain.DevicePublic,
) {
	if req.SessionID == "" || len(req.Recipients) == 0 {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "session ID and recipients are required")
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if _, exists := s.st.sessions[req.SessionID]; exists {
		writeError(w, r, http.StatusConflict, relay.CodeConflict, "session already exists")
		return
	}
	sess := &sessionState{
		createdBy: creator,
		rights:    make(map[string]domain.RecipientRights, len(req.Recipients)),
		keys:      make(map[domain.ConversationID]keyGrant),
	}
	allowed := make(map[string]bool, len(req.Recipients))
	for _, rec := range req.Recipients {
		if !s.st.idTaken(rec.ID) {
			writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "unknown recipient "+rec.ID)
			return
		}
		sess.rights[rec.ID] = rec.Rights
		allowed[rec.ID] = true
	}
	grants, problem := s.st.checkKeys(req.SessionID, req.Keys, allowed, sender)
	if problem != "" {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, problem)
		return
	}
	for _, g := range grants {
		sess.grant(g)
	}
	s.st.sessions[req.SessionID] = sess
	s.log.Debug().Str("session", string(req.SessionID)).Int("keys", len(grants)).Msg("session created")
	writeJSON(w, http.StatusCreated, nil)
}

func (s *Server) fetchSessionKey(w http.ResponseWriter, r *http.Request, c caller) {
	id := domain.SessionID(mux.Vars(r)["session"])
	viaGroups := r.URL.Query().Get("group") == "true"

	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	sess, ok := s.st.sessions[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "unknown session")
		return
	}
	resp := domain.SessionKeyResponse{SessionID: id, CreatedBy: sess.createdBy}

	if rights, ok := sess.rights[string(c.user)]; ok && rights.Read {
		if g, ok := sess.keys[domain.ConversationFor(c.user, c.device.DeviceID)]; ok {
			resp.Key, resp.Sender = g.key, g.sender
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}
	if viaGroups {
		groupIDs := make([]string, 0, len(sess.rights))
		for rid, rights := range sess.rights {
			if rights.Read {
				groupIDs = append(groupIDs, rid)
			}
		}
		sort.Strings(groupIDs)
		for _, gid := range groupIDs {
			grp, ok := s.st.groups[domain.GroupID(gid)]
			if !ok || !grp.group.IsMember(c.user) {
				continue
			}
			history := grp.group.KeyHistory
			for i := len(history) - 1; i >= 0; i-- {
				g, ok := sess.keys[domain.ConversationFor(domain.UserID(gid), history[i])]
				if !ok {
					continue
				}
				resp.Key, resp.Sender = g.key, g.sender
				resp.ViaGroup, resp.GroupKeyID = grp.group.ID, history[i]
				writeJSON(w, http.StatusOK, resp)
				return
			}
		}
	}
	if s.st.hasRight(sess, c.user, canRead) {
		writeError(w, r, http.StatusNotFound, relay.CodeNoKey, "no key for this device")
		return
	}
	writeError(w, r, http.StatusForbidden, relay.CodeForbidden, "not a recipient of this session")
}

func (s *Server) addSessionRecipients(w http.ResponseWriter, r *http.Request, c caller) {
	id := domain.SessionID(mux.Vars(r)["session"])
	var req domain.AddRecipientsRequest
	if !decode(w, r, c.body, &req) {
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	sess, ok := s.st.sessions[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "unknown session")
		return
	}
	if !s.st.hasRight(sess, c.user, canForward) {
		writeError(w, r, http.StatusForbidden, relay.CodeForbidden, "forward right required")
		return
	}

	// Existing recipients keep their rights; only the revoke holder may hand out revoke.
	mayRevoke := s.st.hasRight(sess, c.user, canRevoke)
	resp := domain.AddRecipientsResponse{Recipients: make(map[string]domain.ActionStatus, len(req.Recipients))}
	allowed := make(map[string]bool, len(req.Recipients))
	added := make(map[string]domain.RecipientRights, len(req.Recipients))
	for _, rec := range req.Recipients {
		switch _, exists := sess.rights[rec.ID]; {
		case exists:
			resp.Recipients[rec.ID] = domain.ActionStatus{Success: true, Result: "already a recipient"}
		case !s.st.idTaken(rec.ID):
			resp.Recipients[rec.ID] = domain.ActionStatus{ErrorCode: relay.CodeNotFound, Result: "unknown recipient"}
			continue
		case rec.Rights.Revoke && !mayRevoke:
			resp.Recipients[rec.ID] = domain.ActionStatus{ErrorCode: relay.CodeForbidden, Result: "revoke right required to grant it"}
			continue
		default:
			added[rec.ID] = rec.Rights
		}
		allowed[rec.ID] = true
	}
	keys := make([]domain.WrappedKey, 0, len(req.Keys))
	for _, wk := range req.Keys {
		if allowed[wk.RecipientUser] {
			keys = append(keys, wk)
		}
	}
	grants, problem := s.st.checkKeys(id, keys, allowed, c.device)
	if problem != "" {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, problem)
		return
	}
	for rid, rights := range added {
		sess.rights[rid] = rights
		resp.Recipients[rid] = domain.ActionStatus{Success: true, Result: "added"}
	}
	for _, g := range grants {
		_, isNew := added[g.key.RecipientUser]
		if _, held := sess.keys[domain.ConversationFor(domain.UserID(g.key.RecipientUser), g.key.RecipientDevice)]; held && !isNew {
			continue
		}
		sess.grant(g)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) revokeSessionRecipients(w http.ResponseWriter, r *http.Request, c caller) {
	id := domain.SessionID(mux.Vars(r)["session"])
	var req domain.RevokeRequest
	if !decode(w, r, c.body, &req) {
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	sess, ok := s.st.sessions[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "unknown session")
		return
	}
	if !s.st.hasRight(sess, c.user, canRevoke) {
		writeError(w, r, http.StatusForbidden, relay.CodeForbidden, "revoke right required")
		return
	}

	targets := req.Recipients
	if req.All || req.Others {
		targets = targets[:0:0]
		for rid := range sess.rights {
			if req.Others && rid == string(c.user) {
				continue
			}
			targets = append(targets, rid)
		}
		sort.Strings(targets)
	}
	res := domain.RevokeResult{Recipients: make(map[string]domain.ActionStatus, len(targets))}
	for _, rid := range targets {
		if _, ok := sess.rights[rid]; !ok {
			res.Recipients[rid] = domain.ActionStatus{ErrorCode: relay.CodeNotFound, Result: "not a recipient"}
			continue
		}
		sess.revoke(rid)
		res.Recipients[rid] = domain.ActionStatus{Success: true, Result: "revoked"}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) uploadSessionKeys(w http.ResponseWriter, r *http.Request, c caller) {
	id := domain.SessionID(mux.Vars(r)["session"])
	var keys []domain.WrappedKey
	if !decode(w, r, c.body, &keys) {
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	sess, ok := s.st.sessions[id]
	if !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "unknown session")
		return
	}
	if rights, ok := sess.rights[string(c.user)]; !ok || !rights.Read {
		writeError(w, r, http.StatusForbidden, relay.CodeForbidden, "read right required")
		return
	}
	grants, problem := s.st.checkKeys(id, keys, map[string]bool{string(c.user): true}, c.device)
	if problem != "" {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, problem)
		return
	}
	for _, g := range grants {
		sess.grant(g)
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// missingFor lists, in ID order, the sessions user reads directly that have a key for
// one of its devices but not for device. Callers hold mu.
func (st *state) missingFor(user domain.UserID, device domain.DeviceID) []domain.SessionID {
	var out []domain.SessionID
	target := domain.ConversationFor(user, device)
	for id, sess := range st.sessions {
		if rights, ok := sess.rights[string(user)]; !ok || !rights.Read {
			continue
		}
		if _, ok := sess.keys[target]; ok {
			continue
		}
		for _, g := range sess.keys {
			if g.key.RecipientUser == string(user) {
				out = append(out, id)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Server) missingSessionKeys(w http.ResponseWriter, r *http.Request, c caller) {
	device := domain.DeviceID(mux.Vars(r)["device"])
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	if _, ok := s.st.accounts[c.user].devices[device]; !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "no such device")
		return
	}
	ids := s.st.missingFor(c.user, device)
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	writeJSON(w, http.StatusOK, domain.MissingKeysResponse{Sessions: ids})
}

func (s *Server) devicesMissingKeys(w http.ResponseWriter, r *http.Request, c caller) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	out := []domain.DeviceMissingKeys{}
	for _, d := range s.st.accounts[c.user].activeDevices(s.now) {
		if n := len(s.st.missingFor(c.user, d.DeviceID)); n > 0 {
			out = append(out, domain.DeviceMissingKeys{DeviceID: d.DeviceID, Count: n})
		}
	}
	writeJSON(w, http.StatusOK, out)
}
