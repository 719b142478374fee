package keywrap

import "sealkit/internal/domain"

// SessionSubject binds a wrapped key to an encryption session.
func SessionSubject(id domain.SessionID) string { return "session:" + string(id) }

// GroupSubject binds a wrapped key to one key generation of a group.
func GroupSubject(group domain.GroupID, keyID domain.DeviceID) string {
	return "group:" + string(group) + ":" + string(keyID)
}
