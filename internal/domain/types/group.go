package types

// Group is the key server's view of a group.
//
// CurrentKey is the public half of the key generation new sessions are wrapped for.
// Older generations stay listed in KeyHistory so members can still open old sessions.
type Group struct {
	ID         GroupID      `json:"id"`
	Name       string       `json:"name"`
	Members    []UserID     `json:"members"`
	Admins     []UserID     `json:"admins"`
	CurrentKey DevicePublic `json:"current_key"`
	KeyHistory []DeviceID   `json:"key_history,omitempty"`
}

// IsMember reports whether user belongs to the group.
func (g Group) IsMember(user UserID) bool { return containsUser(g.Members, user) }

// IsAdmin reports whether user administers the group.
func (g Group) IsAdmin(user UserID) bool { return containsUser(g.Admins, user) }

// GroupKeys are the private keys of one group key generation.
type GroupKeys struct {
	GroupID GroupID        `json:"group_id"`
	KeyID   DeviceID       `json:"key_id"`
	XPriv   X25519Private  `json:"xpriv"`
	XPub    X25519Public   `json:"xpub"`
	EdPriv  Ed25519Private `json:"edpriv"`
	EdPub   Ed25519Public  `json:"edpub"`
}

// Identity returns the generation as a device identity of the group, the form key
// unwrapping expects.
func (k GroupKeys) Identity() Identity {
	return Identity{
		UserID:   UserID(k.GroupID),
		DeviceID: k.KeyID,
		XPriv:    k.XPriv,
		XPub:     k.XPub,
		EdPriv:   k.EdPriv,
		EdPub:    k.EdPub,
	}
}

func containsUser(users []UserID, u UserID) bool {
	for _, x := range users {
		if x == u {
			return true
		}
	}
	return false
}
