package relayserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"sealkit/internal/domain"
	"sealkit/internal/relay"
	"sealkit/internal/sigchain"
	"sealkit/internal/token"
)

// entryMatches reports whether a sigchain entry describes exactly device d.
func entryMatches(e domain.SigchainEntry, d domain.DevicePublic) bool {
	var expires int64
	if !d.Expires.IsZero() {
		expires = d.Expires.Unix()
	}
	return e.UserID == d.UserID &&
		e.DeviceID == d.DeviceID &&
		e.EncryptionKey == d.EncryptionKey &&
		e.SigningKey == d.SigningKey &&
		e.Expires == expires
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, relay.CodeBadRequest, err.Error())
		return
	}
	var req domain.CreateAccountRequest
	if !decode(w, r, body, &req) {
		return
	}
	if _, err := s.issuer.Verify(req.SignupJWT, token.PurposeSignup); err != nil {
		writeError(w, r, http.StatusUnauthorized, relay.CodeUnauthorized, err.Error())
		return
	}
	d := req.Device
	if d.UserID == "" || d.DeviceID == "" {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "user and device IDs are required")
		return
	}
	if req.Sigchain.Op != domain.SigchainCreate || !entryMatches(req.Sigchain, d) {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "sigchain entry does not describe the device")
		return
	}
	chain := []domain.SigchainEntry{req.Sigchain}
	if _, err := sigchain.Verify(chain); err != nil {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, err.Error())
		return
	}
	d.Revoked = false

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if s.st.idTaken(string(d.UserID)) {
		writeError(w, r, http.StatusConflict, relay.CodeConflict, "user already exists")
		return
	}
	s.st.accounts[d.UserID] = &account{
		displayName: req.DisplayName,
		devices:     map[domain.DeviceID]domain.DevicePublic{d.DeviceID: d},
		sigchain:    chain,
	}
	s.log.Info().Str("user", string(d.UserID)).Str("device", string(d.DeviceID)).Msg("account created")
	writeJSON(w, http.StatusCreated, nil)
}

func (s *Server) addDevice(w http.ResponseWriter, r *http.Request, c caller) {
	var req domain.AddDeviceRequest
	if !decode(w, r, c.body, &req) {
		return
	}
	d := req.Device
	if d.UserID != c.user || d.DeviceID == "" {
		writeError(w, r, http.StatusForbidden, relay.CodeForbidden, "devices can only be added to your own account")
		return
	}
	if req.Sigchain.Op != domain.SigchainAddDevice || !entryMatches(req.Sigchain, d) {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "sigchain entry does not describe the device")
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	acc := s.st.accounts[c.user]
	if _, exists := acc.devices[d.DeviceID]; exists {
		writeError(w, r, http.StatusConflict, relay.CodeConflict, "device already exists")
		return
	}
	chain := append(append([]domain.SigchainEntry(nil), acc.sigchain...), req.Sigchain)
	if _, err := sigchain.Verify(chain); err != nil {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, err.Error())
		return
	}
	d.Revoked = false
	acc.devices[d.DeviceID] = d
	acc.sigchain = chain
	s.log.Info().Str("user", string(c.user)).Str("device", string(d.DeviceID)).Msg("device added")
	writeJSON(w, http.StatusCreated, nil)
}

func (s *Server) renewDevice(w http.ResponseWriter, r *http.Request, c caller) {
	var req domain.RenewDeviceRequest
	if !decode(w, r, c.body, &req) {
		return
	}
	d := req.Device
	target := domain.DeviceID(mux.Vars(r)["device"])
	if d.UserID != c.user || d.DeviceID != c.device.DeviceID || target != d.DeviceID {
		writeError(w, r, http.StatusForbidden, relay.CodeForbidden, "a device can only renew its own keys")
		return
	}
	if req.Sigchain.Op != domain.SigchainRenew || !entryMatches(req.Sigchain, d) {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "sigchain entry does not describe the device")
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	acc := s.st.accounts[c.user]
	chain := append(append([]domain.SigchainEntry(nil), acc.sigchain...), req.Sigchain)
	if _, err := sigchain.Verify(chain); err != nil {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, err.Error())
		return
	}
	d.Name = acc.devices[d.DeviceID].Name
	d.Revoked = false
	acc.devices[d.DeviceID] = d
	acc.sigchain = chain
	s.log.Info().Str("user", string(c.user)).Str("device", string(d.DeviceID)).Msg("device keys renewed")
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) heartbeat(w http.ResponseWriter, _ *http.Request, _ caller) {
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request, _ caller) {
	id := mux.Vars(r)["user"]

	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	if acc, ok := s.st.accounts[domain.UserID(id)]; ok {
		out := make([]domain.DevicePublic, 0, len(acc.devices))
		for _, d := range acc.devices {
			out = append(out, d)
		}
		sortDevices(out)
		writeJSON(w, http.StatusOK, out)
		return
	}
	if g, ok := s.st.groups[domain.GroupID(id)]; ok {
		writeJSON(w, http.StatusOK, []domain.DevicePublic{g.group.CurrentKey})
		return
	}
	writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "no such user")
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request, _ caller) {
	vars := mux.Vars(r)

	s.st.mu.RLock()
	d, ok := s.st.device(vars["user"], domain.DeviceID(vars["device"]))
	s.st.mu.RUnlock()
	if !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "no such device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) getSigchain(w http.ResponseWriter, r *http.Request, _ caller) {
	id := mux.Vars(r)["user"]

	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	if acc, ok := s.st.accounts[domain.UserID(id)]; ok {
		writeJSON(w, http.StatusOK, acc.sigchain)
		return
	}
	if g, ok := s.st.groups[domain.GroupID(id)]; ok {
		writeJSON(w, http.StatusOK, g.sigchain)
		return
	}
	writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "no such user")
}
