package relayserver

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"sealkit/internal/domain"
	"sealkit/internal/protocol/x3dh"
	"sealkit/internal/relay"
)

func (s *Server) registerBundle(w http.ResponseWriter, r *http.Request, c caller) {
	var b domain.PreKeyBundle
	if !decode(w, r, c.body, &b) {
		return
	}
	if b.UserID != c.user || b.DeviceID != c.device.DeviceID {
		writeError(w, r, http.StatusForbidden, relay.CodeForbidden, "bundle must describe the calling device")
		return
	}
	if b.IdentityKey != c.device.EncryptionKey || b.SigningKey != c.device.SigningKey {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "bundle keys do not match the device")
		return
	}
	if !x3dh.VerifySPK(b) {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "signed pre-key signature invalid")
		return
	}

	s.st.mu.Lock()
	s.st.bundles[domain.ConversationFor(b.UserID, b.DeviceID)] = b
	s.st.mu.Unlock()
	writeJSON(w, http.StatusNoContent, nil)
}

// fetchBundle hands out the bundle of a device with at most one one-time pre-key,
// which is removed so no other initiator gets it.
func (s *Server) fetchBundle(w http.ResponseWriter, r *http.Request, _ caller) {
	vars := mux.Vars(r)
	conv := domain.ConversationFor(domain.UserID(vars["user"]), domain.DeviceID(vars["device"]))

	s.st.mu.Lock()
	b, ok := s.st.bundles[conv]
	if ok && len(b.OneTimePreKeys) > 0 {
		stored := b
		stored.OneTimePreKeys = append([]domain.OneTimePreKeyPublic(nil), b.OneTimePreKeys[1:]...)
		s.st.bundles[conv] = stored
		b.OneTimePreKeys = b.OneTimePreKeys[:1]
	}
	s.st.mu.Unlock()

	if !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "no pre-key bundle for this device")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request, c caller) {
	var msg domain.ChannelMessage
	if !decode(w, r, c.body, &msg) {
		return
	}
	msg.FromUser = c.user
	msg.FromDevice = c.device.DeviceID
	if msg.Timestamp == 0 {
		msg.Timestamp = s.now().Unix()
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if _, ok := s.st.device(string(msg.ToUser), msg.ToDevice); !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "no such recipient device")
		return
	}
	conv := domain.ConversationFor(msg.ToUser, msg.ToDevice)
	s.st.queues[conv] = append(s.st.queues[conv], msg)
	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) fetchMessages(w http.ResponseWriter, r *http.Request, c caller) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	conv := domain.ConversationFor(c.user, c.device.DeviceID)

	s.st.mu.RLock()
	q := s.st.queues[conv]
	if limit > 0 && limit < len(q) {
		q = q[:limit]
	}
	out := append([]domain.ChannelMessage{}, q...)
	s.st.mu.RUnlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) ackMessages(w http.ResponseWriter, r *http.Request, c caller) {
	var req relay.AckRequest
	if !decode(w, r, c.body, &req) {
		return
	}
	if req.Count < 0 {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "negative count")
		return
	}
	conv := domain.ConversationFor(c.user, c.device.DeviceID)

	s.st.mu.Lock()
	q := s.st.queues[conv]
	if req.Count > len(q) {
		req.Count = len(q)
	}
	s.st.queues[conv] = q[req.Count:]
	s.st.mu.Unlock()

	writeJSON(w, http.StatusNoContent, nil)
}
