package relayserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"sealkit/internal/domain"
	"sealkit/internal/relay"
)

// Backups are addressed by a lookup token derived from the backup password, so the
// routes carry no device authentication.

func (s *Server) putBackup(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, relay.CodeBadRequest, err.Error())
		return
	}
	var rec domain.BackupRecord
	if !decode(w, r, body, &rec) {
		return
	}
	if rec.UserID == "" || rec.Lookup == "" || len(rec.Blob) == 0 {
		writeError(w, r, http.StatusBadRequest, relay.CodeBadRequest, "user, lookup and blob are required")
		return
	}

	s.st.mu.Lock()
	s.st.backups[backupKey(rec.UserID, rec.Lookup)] = rec
	s.st.mu.Unlock()
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) getBackup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.st.mu.RLock()
	rec, ok := s.st.backups[backupKey(domain.UserID(vars["user"]), vars["lookup"])]
	s.st.mu.RUnlock()
	if !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "no such backup")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteBackup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	k := backupKey(domain.UserID(vars["user"]), vars["lookup"])

	s.st.mu.Lock()
	_, ok := s.st.backups[k]
	delete(s.st.backups, k)
	s.st.mu.Unlock()
	if !ok {
		writeError(w, r, http.StatusNotFound, relay.CodeNotFound, "no such backup")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
