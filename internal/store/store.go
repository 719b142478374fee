package store

import (
	"encoding/json"
	"errors"
	"sync"

	"sealkit/internal/storage"
)

// Name spaces opened on the local database.
const (
	identityNS     = "identity"
	accountNS      = "account"
	preKeyNS       = "prekeys"
	bundleNS       = "bundle"
	channelNS      = "channels"
	conversationNS = "conversations"
	groupKeyNS     = "groupkeys"
)

// Stores bundles every domain store opened on one provider.
type Stores struct {
	Identity      *IdentityStore
	Account       *AccountStore
	PreKeys       *PreKeyStore
	Bundles       *BundleStore
	Channels      *ChannelStore
	Conversations *RatchetStore
	GroupKeys     *GroupKeyStore
}

// Open opens all stores on p.
func Open(p storage.Provider) (*Stores, error) {
	spaces := make(map[string]*kv, 7)
	for _, name := range []string{
		identityNS, accountNS, preKeyNS, bundleNS, channelNS, conversationNS, groupKeyNS,
	} {
		s, err := p.OpenStore(name)
		if err != nil {
			return nil, err
		}
		spaces[name] = &kv{s: s}
	}
	return &Stores{
		Identity:      &IdentityStore{kv: spaces[identityNS]},
		Account:       &AccountStore{kv: spaces[accountNS]},
		PreKeys:       &PreKeyStore{kv: spaces[preKeyNS]},
		Bundles:       &BundleStore{kv: spaces[bundleNS]},
		Channels:      &ChannelStore{kv: spaces[channelNS]},
		Conversations: &RatchetStore{kv: spaces[conversationNS]},
		GroupKeys:     &GroupKeyStore{kv: spaces[groupKeyNS]},
	}, nil
}

// kv adds JSON helpers and a lock to a storage.Store.
type kv struct {
	s  storage.Store
	mu sync.Mutex
}

// getJSON reads k into out; a missing key is reported through ok.
func (k *kv) getJSON(key string, out any) (ok bool, err error) {
	b, err := k.s.Get(key)
	if errors.Is(err, storage.ErrDataNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, out)
}

// putJSON writes v under key.
func (k *kv) putJSON(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return k.s.Put(key, b)
}
