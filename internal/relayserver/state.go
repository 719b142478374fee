package relayserver

import (
	"sort"
	"sync"

	"sealkit/internal/domain"
)

type account struct {
	displayName string
	devices     map[domain.DeviceID]domain.DevicePublic
	sigchain    []domain.SigchainEntry
}

func (a *account) activeDevices(at timeSource) []domain.DevicePublic {
	now := at()
	out := make([]domain.DevicePublic, 0, len(a.devices))
	for _, d := range a.devices {
		if d.Active(now) {
			out = append(out, d)
		}
	}
	sortDevices(out)
	return out
}

// keyGrant is a wrapped key with the sender record the server authenticated when it
// was uploaded.
type keyGrant struct {
	key    domain.WrappedKey
	sender domain.DevicePublic
}

type groupState struct {
	group    domain.Group
	sigchain []domain.SigchainEntry
	// generations maps key ID to the public keys of that generation.
	generations map[domain.DeviceID]domain.DevicePublic
	// keys maps key ID, then member device, to the wrapped group private keys.
	keys map[domain.DeviceID]map[domain.ConversationID]keyGrant
}

func (g *groupState) grant(keyID domain.DeviceID, k keyGrant) {
	m, ok := g.keys[keyID]
	if !ok {
		m = make(map[domain.ConversationID]keyGrant)
		g.keys[keyID] = m
	}
	m[domain.ConversationFor(domain.UserID(k.key.RecipientUser), k.key.RecipientDevice)] = k
}

func (g *groupState) dropMember(user domain.UserID) {
	for _, m := range g.keys {
		for conv, k := range m {
			if k.key.RecipientUser == string(user) {
				delete(m, conv)
			}
		}
	}
}

type sessionState struct {
	createdBy domain.UserID
	// rights maps a user or group ID to its rights.
	rights map[string]domain.RecipientRights
	// keys maps recipient/device (group/keyID for groups) to the wrapped session key.
	keys map[domain.ConversationID]keyGrant
}

func (s *sessionState) grant(k keyGrant) {
	s.keys[domain.ConversationFor(domain.UserID(k.key.RecipientUser), k.key.RecipientDevice)] = k
}

func (s *sessionState) revoke(id string) {
	delete(s.rights, id)
	for conv, k := range s.keys {
		if k.key.RecipientUser == id {
			delete(s.keys, conv)
		}
	}
}

type state struct {
	mu       sync.RWMutex
	accounts map[domain.UserID]*account
	groups   map[domain.GroupID]*groupState
	sessions map[domain.SessionID]*sessionState
	bundles  map[domain.ConversationID]domain.PreKeyBundle
	queues   map[domain.ConversationID][]domain.ChannelMessage
	backups  map[string]domain.BackupRecord
}

func newState() *state {
	return &state{
		accounts: make(map[domain.UserID]*account),
		groups:   make(map[domain.GroupID]*groupState),
		sessions: make(map[domain.SessionID]*sessionState),
		bundles:  make(map[domain.ConversationID]domain.PreKeyBundle),
		queues:   make(map[domain.ConversationID][]domain.ChannelMessage),
		backups:  make(map[string]domain.BackupRecord),
	}
}

// idTaken reports whether id names an account or a group. Callers hold mu.
func (st *state) idTaken(id string) bool {
	_, user := st.accounts[domain.UserID(id)]
	_, group := st.groups[domain.GroupID(id)]
	return user || group
}

// device finds a user device or a group key generation. Callers hold mu.
func (st *state) device(owner string, device domain.DeviceID) (domain.DevicePublic, bool) {
	if acc, ok := st.accounts[domain.UserID(owner)]; ok {
		d, ok := acc.devices[device]
		return d, ok
	}
	if g, ok := st.groups[domain.GroupID(owner)]; ok {
		d, ok := g.generations[device]
		return d, ok
	}
	return domain.DevicePublic{}, false
}

// recipient resolves a user or group into the devices keys must be wrapped for.
// Callers hold mu.
func (st *state) recipient(id string, at timeSource) (domain.Recipient, bool) {
	if acc, ok := st.accounts[domain.UserID(id)]; ok {
		return domain.Recipient{ID: id, Devices: acc.activeDevices(at)}, true
	}
	if g, ok := st.groups[domain.GroupID(id)]; ok {
		return domain.Recipient{ID: id, IsGroup: true, Devices: []domain.DevicePublic{g.group.CurrentKey}}, true
	}
	return domain.Recipient{}, false
}

func backupKey(user domain.UserID, lookup string) string { return string(user) + "\x00" + lookup }

func sortDevices(ds []domain.DevicePublic) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].DeviceID < ds[j].DeviceID })
}
