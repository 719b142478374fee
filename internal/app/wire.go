package app

import (
	"net/http"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sealkit/internal/domain"
	"sealkit/internal/logging"
	"sealkit/internal/relay"
	anonymoussvc "sealkit/internal/services/anonymous"
	backupsvc "sealkit/internal/services/backup"
	channelsvc "sealkit/internal/services/channel"
	"sealkit/internal/services/directory"
	groupsvc "sealkit/internal/services/group"
	identitysvc "sealkit/internal/services/identity"
	messagesvc "sealkit/internal/services/message"
	prekeysvc "sealkit/internal/services/prekey"
	sessionsvc "sealkit/internal/services/session"
	"sealkit/internal/storage"
	"sealkit/internal/storage/encrypted"
	"sealkit/internal/storage/leveldb"
	"sealkit/internal/store"
)

// Wire bundles all stores, services, and clients of one SDK instance.
type Wire struct {
	Provider  storage.Provider
	Stores    *store.Stores
	Relay     *relay.Client
	Directory *directory.Directory
	Log       zerolog.Logger

	Identity  *identitysvc.Service
	PreKeys   *prekeysvc.Service
	Channels  *channelsvc.Service
	Messages  *messagesvc.Service
	Sessions  *sessionsvc.Service
	Cache     *sessionsvc.Cache
	Groups    *groupsvc.Service
	Backup    *backupsvc.Service
	Anonymous *anonymoussvc.Service
}

// credentials reads the device signing key from the identity store for every request.
func credentials(ids domain.IdentityStore) relay.CredentialsFunc {
	return func() (relay.Credentials, bool) {
		id, ok, err := ids.LoadIdentity()
		if err != nil || !ok {
			return relay.Credentials{}, false
		}
		return relay.Credentials{UserID: id.UserID, DeviceID: id.DeviceID, SigningKey: id.EdPriv}, true
	}
}

func openProvider(cfg Config) (storage.Provider, error) {
	var inner *leveldb.Provider
	var err error
	if cfg.DatabasePath == "" {
		inner, err = leveldb.NewMemProvider()
	} else {
		inner, err = leveldb.NewProvider(cfg.DatabasePath)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open local database")
	}
	p, err := encrypted.New(inner, cfg.DatabaseKey)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	return p, nil
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	provider, err := openProvider(cfg)
	if err != nil {
		return nil, err
	}
	stores, err := store.Open(provider)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	log := cfg.Logger

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	rc := relay.NewHTTP(cfg.ServerURL,
		relay.WithHTTPClient(httpClient),
		relay.WithAppID(cfg.AppID),
		relay.WithCredentials(credentials(stores.Identity)),
		relay.WithMaxRetries(cfg.MaxRetries),
		relay.WithLogger(logging.Module(log, "relay")),
	)
	dir := directory.New(rc, cfg.DirectoryTTL)

	ids := identitysvc.New(stores.Identity, stores.Account, rc, cfg.ServerURL, logging.Module(log, "identity"))
	prekeys := prekeysvc.New(ids, stores.PreKeys, stores.Bundles, rc)
	channels := channelsvc.New(ids, stores.Channels, rc)
	messages := messagesvc.New(ids, stores.PreKeys, stores.Conversations, channels, rc, rc, logging.Module(log, "message"))
	groups := groupsvc.New(ids, rc, dir, stores.GroupKeys, logging.Module(log, "group"))
	cache := sessionsvc.NewCache(cfg.SessionCacheTTL)
	sessions := sessionsvc.New(ids, rc, dir, groups, cache, cfg.Compression, logging.Module(log, "session"))

	return &Wire{
		Provider:  provider,
		Stores:    stores,
		Relay:     rc,
		Directory: dir,
		Log:       log,
		Identity:  ids,
		PreKeys:   prekeys,
		Channels:  channels,
		Messages:  messages,
		Sessions:  sessions,
		Cache:     cache,
		Groups:    groups,
		Backup:    backupsvc.New(rc, cfg.Backup, logging.Module(log, "backup")),
		Anonymous: anonymoussvc.New(rc, cfg.Compression, logging.Module(log, "anonymous")),
	}, nil
}

// Close purges cached sessions and releases the local database.
func (w *Wire) Close() error {
	w.Cache.Purge()
	return w.Provider.Close()
}
