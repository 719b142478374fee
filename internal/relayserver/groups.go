package relayserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"sealkit/internal/domain"
	"sealkit/internal/protocol/keywrap"
	"sealkit/internal/relay"
	"sealkit/internal/sigchain"
)

func containsAll(set, sub []domain.UserID) bool {
	for _, u := range sub {
		found := false
		for _, v := range set {
			if u == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func appendMissing(users []domain.UserID, add ...domain.UserID) []domain.UserID {
	for _, u := range add {
		if !containsAll(users, []domain.UserID{u}) {
			users = append(users, u)
		}
	}
	return users
}

// checkGroupKeys validates group private keys wrapped by sender for the devices of
// members. Each key must name one of the group's key generations. Callers hold mu.
func (st *state) checkGroupKeys(
	g *groupState,
	members []domain.UserID,
	keys []domain.WrappedKey,
	sender domain.DevicePublic,
) (map[domain.DeviceID][]keyGrant, string) {
	out := make(map[domain.DeviceID][]keyGrant)
	for _, wk := range keys {
		var keyID domain.DeviceID
		for id := range g.generations {
			if wk.Subject == keywrap.GroupSubject(g.group.ID, id) {
				keyID = id
				break
			}
		}
		if keyID == "" {
			return nil, "key subject does not name a key of this group"
		}
		if !containsAll(members, []domain.UserID{domain.UserID(wk.RecipientUser)}) {
			return nil, "key for " + wk.RecipientUser + " who is not a member"
		}
		acc, ok := st.accounts[domain.UserID(wk.RecipientUser)]
		if !ok {
			return nil, "key for unknown user " + wk.RecipientUser
		}
		d, ok := acc.devices[wk.RecipientDevice]
		if !ok || d.Revoked || d.EncryptionKey != wk.RecipientKey {
			return nil, "key for unknown or outdated device " + string(wk.RecipientDevice)
		}
		if wk.Anonymous || wk.SenderUser != sender.UserID || wk.SenderDevice != sender.DeviceID {
			return nil, "keys must be wrapped by the calling device"
		}
		out[keyID] = append(out[keyID], keyGrant{key: wk, sender: sender})
	}
	return out, ""
}

// lookupGroup fetches a group and checks the caller's standing in it. Callers hold mu.
func (s *Server) lookupGroup(
	w http.ResponseWriter,
	r *http.Request,
	c caller,
	admin bool,
) (*groupState, bool) {
	g, ok := s.st.groups[domain.GroupID(mux.Vars(r)["group"])]
	if !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "unknown group")
		return nil, false
	}
	if !g.group.IsMember(c.user) {
		writeError(w, r, http.StatusForbidden, relay.CodeForbidden, "not a member of this group")
		return nil, false
	}
	if admin && !g.group.IsAdmin(c.user) {
		writeError(w, r, http.StatusForbidden, relay.CodeForbidden, "group admin right required")
		return nil, false
	}
	return g, true
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request, c caller) {
	var req domain.CreateGroupRequest
	if !decode(w, r, c.body, &req) {
		return
	}
	grp := req.Group
	key := grp.CurrentKey
	switch {
	case grp.ID == "" || key.DeviceID == "":
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "group and key IDs are required")
		return
	case key.UserID != domain.UserID(grp.ID):
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "group key must belong to the group")
		return
	case !grp.IsMember(c.user) || !grp.IsAdmin(c.user):
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "the creator must be a member and an admin")
		return
	case !containsAll(grp.Members, grp.Admins):
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "admins must be members")
		return
	case req.Sigchain.Op != domain.SigchainCreate || !entryMatches(req.Sigchain, key):
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "sigchain entry does not describe the group key")
		return
	}
	chain := []domain.SigchainEntry{req.Sigchain}
	if _, err := sigchain.Verify(chain); err != nil {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, err.Error())
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if s.st.idTaken(string(grp.ID)) {
		writeError(w, r, http.StatusConflict, relay.CodeConflict, "ID already taken")
		return
	}
	for _, m := range grp.Members {
		if _, ok := s.st.accounts[m]; !ok {
			writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "unknown member "+string(m))
			return
		}
	}
	grp.KeyHistory = []domain.DeviceID{key.DeviceID}
	g := &groupState{
		group:       grp,
		sigchain:    chain,
		generations: map[domain.DeviceID]domain.DevicePublic{key.DeviceID: key},
		keys:        make(map[domain.DeviceID]map[domain.ConversationID]keyGrant),
	}
	grants, problem := s.st.checkGroupKeys(g, grp.Members, req.Keys, c.device)
	if problem != "" {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, problem)
		return
	}
	for keyID, gs := range grants {
		for _, k := range gs {
			g.grant(keyID, k)
		}
	}
	s.st.groups[grp.ID] = g
	s.log.Info().Str("group", string(grp.ID)).Int("members", len(grp.Members)).Msg("group created")
	writeJSON(w, http.StatusCreated, nil)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request, c caller) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	g, ok := s.lookupGroup(w, r, c, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g.group)
}

func (s *Server) addGroupMembers(w http.ResponseWriter, r *http.Request, c caller) {
	var req domain.GroupMembersRequest
	if !decode(w, r, c.body, &req) {
		return
	}
	if !containsAll(req.Members, req.Admins) {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "new admins must be among the new members")
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	g, ok := s.lookupGroup(w, r, c, true)
	if !ok {
		return
	}
	for _, m := range req.Members {
		if _, ok := s.st.accounts[m]; !ok {
			writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "unknown member "+string(m))
			return
		}
	}
	members := appendMissing(append([]domain.UserID(nil), g.group.Members...), req.Members...)
	grants, problem := s.st.checkGroupKeys(g, members, req.Keys, c.device)
	if problem != "" {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, problem)
		return
	}
	g.group.Members = members
	g.group.Admins = appendMissing(g.group.Admins, req.Admins...)
	for keyID, gs := range grants {
		for _, k := range gs {
			g.grant(keyID, k)
		}
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) removeGroupMembers(w http.ResponseWriter, r *http.Request, c caller) {
	var req relay.MembersRequest
	if !decode(w, r, c.body, &req) {
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	g, ok := s.lookupGroup(w, r, c, true)
	if !ok {
		return
	}
	keep := func(users []domain.UserID) []domain.UserID {
		out := make([]domain.UserID, 0, len(users))
		for _, u := range users {
			if !containsAll(req.Members, []domain.UserID{u}) {
				out = append(out, u)
			}
		}
		return out
	}
	admins := keep(g.group.Admins)
	if len(admins) == 0 {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "a group needs at least one admin")
		return
	}
	g.group.Members = keep(g.group.Members)
	g.group.Admins = admins
	for _, u := range req.Members {
		g.dropMember(u)
	}
	s.log.Info().Str("group", string(g.group.ID)).Int("removed", len(req.Members)).Msg("group members removed")
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) renewGroupKey(w http.ResponseWriter, r *http.Request, c caller) {
	var req domain.RenewGroupKeyRequest
	if !decode(w, r, c.body, &req) {
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	g, ok := s.lookupGroup(w, r, c, true)
	if !ok {
		return
	}
	key := req.Key
	if key.UserID != domain.UserID(g.group.ID) || key.DeviceID == "" {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "group key must belong to the group")
		return
	}
	if _, exists := g.generations[key.DeviceID]; exists {
		writeError(w, r, http.StatusConflict, relay.CodeConflict, "key ID already used")
		return
	}
	if req.Sigchain.Op != domain.SigchainAddDevice || !entryMatches(req.Sigchain, key) {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "sigchain entry does not describe the group key")
		return
	}
	chain := append(append([]domain.SigchainEntry(nil), g.sigchain...), req.Sigchain)
	if _, err := sigchain.Verify(chain); err != nil {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, err.Error())
		return
	}

	g.generations[key.DeviceID] = key
	grants, problem := s.st.checkGroupKeys(g, g.group.Members, req.Keys, c.device)
	if problem == "" && len(grants[key.DeviceID]) != len(req.Keys) {
		problem = "keys must be wrapped for the new generation"
	}
	if problem != "" {
		delete(g.generations, key.DeviceID)
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, problem)
		return
	}
	for _, k := range grants[key.DeviceID] {
		g.grant(key.DeviceID, k)
	}
	g.sigchain = chain
	g.group.CurrentKey = key
	g.group.KeyHistory = append(g.group.KeyHistory, key.DeviceID)
	s.log.Info().Str("group", string(g.group.ID)).Str("key", string(key.DeviceID)).Msg("group key renewed")
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) setGroupAdmins(w http.ResponseWriter, r *http.Request, c caller) {
	var req relay.AdminsRequest
	if !decode(w, r, c.body, &req) {
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	g, ok := s.lookupGroup(w, r, c, true)
	if !ok {
		return
	}
	if len(req.Admins) == 0 {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "a group needs at least one admin")
		return
	}
	if !containsAll(g.group.Members, req.Admins) {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "admins must be members")
		return
	}
	g.group.Admins = appendMissing(nil, req.Admins...)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) fetchGroupKey(w http.ResponseWriter, r *http.Request, c caller) {
	keyID := domain.DeviceID(mux.Vars(r)["key"])

	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	g, ok := s.lookupGroup(w, r, c, false)
	if !ok {
		return
	}
	k, ok := g.keys[keyID][domain.ConversationFor(c.user, c.device.DeviceID)]
	if !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNoKey, "no group key for this device")
		return
	}
	writeJSON(w, http.StatusOK, domain.GroupKeyResponse{Key: k.key, Sender: k.sender})
}
