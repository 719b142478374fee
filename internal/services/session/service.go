package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/envelope"
	"sealkit/internal/protocol/keywrap"
	"sealkit/internal/relay"
)

// ErrNoRecipientDevice is returned when a user recipient has no active device to wrap
// the session key for.
var ErrNoRecipientDevice = errors.New("recipient has no active device")

// IdentitySource returns the current device identity and refreshes its expiry.
type IdentitySource interface {
	Identity() (domain.Identity, error)
	UpdateCurrentDevice(ctx context.Context) error
}

// Directory vouches for device keys with their owner's sigchain.
type Directory interface {
	CheckActive(ctx context.Context, dev domain.DevicePublic) error
	CheckKnown(ctx context.Context, dev domain.DevicePublic) error
	Device(ctx context.Context, user domain.UserID, device domain.DeviceID) (domain.DevicePublic, error)
	SigningKeys(ctx context.Context, user domain.UserID, device domain.DeviceID) ([]domain.Ed25519Public, error)
	Invalidate(owner string)
}

// GroupKeyOpener opens a group key generation the current user has access to.
type GroupKeyOpener interface {
	OpenGroupKeys(ctx context.Context, id domain.GroupID, keyID domain.DeviceID) (domain.GroupKeys, error)
}

// Service implements domain.SessionService.
type Service struct {
	ids         IdentitySource
	api         domain.SessionAPI
	dir         Directory
	groups      GroupKeyOpener
	cache       *Cache
	compression envelope.Compression
	log         zerolog.Logger
	now         func() time.Time
}

// New returns a session service.
func New(
	ids IdentitySource,
	api domain.SessionAPI,
	dir Directory,
	groups GroupKeyOpener,
	cache *Cache,
	compression envelope.Compression,
	log zerolog.Logger,
) *Service {
	if cache == nil {
		cache = NewCache(0)
	}
	return &Service{
		ids:         ids,
		api:         api,
		dir:         dir,
		groups:      groups,
		cache:       cache,
		compression: compression,
		log:         log,
		now:         time.Now,
	}
}

// identity returns the current identity, refusing to act for an expired device.
func (s *Service) identity() (domain.Identity, error) {
	id, err := s.ids.Identity()
	if err != nil {
		return domain.Identity{}, err
	}
	if !id.DeviceExpires.IsZero() && !s.now().Before(id.DeviceExpires) {
		return domain.Identity{}, domain.ErrDeviceExpired
	}
	return id, nil
}

// mergeRecipients de-duplicates recipients, keeping the first occurrence's position
// and the union of rights. self always ends up first with every right.
func mergeRecipients(self domain.UserID, recipients []domain.RecipientWithRights) []domain.RecipientWithRights {
	out := []domain.RecipientWithRights{{ID: string(self), Rights: domain.DefaultRights()}}
	index := map[string]int{string(self): 0}
	for _, r := range recipients {
		if r.ID == "" {
			continue
		}
		if i, ok := index[r.ID]; ok {
			out[i].Rights.Read = out[i].Rights.Read || r.Rights.Read
			out[i].Rights.Forward = out[i].Rights.Forward || r.Rights.Forward
			out[i].Rights.Revoke = out[i].Rights.Revoke || r.Rights.Revoke
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

// wrapFor verifies every resolved device of recipients and wraps key for it.
func (s *Service) wrapFor(
	ctx context.Context,
	sender domain.Identity,
	sid domain.SessionID,
	key []byte,
	resolved []domain.Recipient,
	rights map[string]domain.RecipientRights,
) ([]domain.WrappedKey, error) {
	var keys []domain.WrappedKey
	now := s.now()
	for _, r := range resolved {
		wrapped := 0
		for _, dev := range r.Devices {
			if string(dev.UserID) != r.ID || !dev.Active(now) {
				continue
			}
			if err := s.dir.CheckActive(ctx, dev); err != nil {
				return nil, pkgerrors.Wrapf(err, "recipient %s", r.ID)
			}
			wk, err := keywrap.Wrap(sender, dev, keywrap.SessionSubject(sid), key, rights[r.ID])
			if err != nil {
				return nil, err
			}
			keys = append(keys, wk)
			wrapped++
		}
		if wrapped == 0 {
			return nil, pkgerrors.Wrapf(ErrNoRecipientDevice, "recipient %s", r.ID)
		}
	}
	return keys, nil
}

// CreateSession registers a new session shared with recipients and the current user.
func (s *Service) CreateSession(
	ctx context.Context,
	recipients []domain.RecipientWithRights,
	useCache bool,
) (domain.EncryptionSession, error) {
	id, err := s.identity()
	if err != nil {
		return domain.EncryptionSession{}, err
	}
	participants := mergeRecipients(id.UserID, recipients)
	ids := make([]string, len(participants))
	rights := make(map[string]domain.RecipientRights, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
		rights[p.ID] = p.Rights
	}

	resolved, err := s.api.ResolveRecipients(ctx, ids)
	if err != nil {
		return domain.EncryptionSession{}, pkgerrors.Wrap(err, "resolve recipients")
	}
	key, err := crypto.RandomKey()
	if err != nil {
		return domain.EncryptionSession{}, err
	}
	sid := domain.SessionID(uuid.NewString())
	keys, err := s.wrapFor(ctx, id, sid, key, resolved, rights)
	if err != nil {
		return domain.EncryptionSession{}, err
	}
	err = s.api.CreateSession(ctx, domain.CreateSessionRequest{
		SessionID:  sid,
		Recipients: participants,
		Keys:       keys,
	})
	if err != nil {
		return domain.EncryptionSession{}, pkgerrors.Wrap(err, "register session")
	}
	s.log.Debug().Str("session", sid.String()).Int("recipients", len(participants)).
		Int("keys", len(keys)).Msg("session created")

	sess := domain.EncryptionSession{
		ID:           sid,
		Key:          key,
		CreatedBy:    id.UserID,
		Participants: participants,
		Retrieval:    domain.RetrievalDetails{Flow: domain.FlowCreated},
	}
	if useCache {
		sess = s.cache.Put(sess)
	}
	return sess, nil
}

// mapFetchError turns key server answers into the errors callers test for.
func mapFetchError(err error, id domain.SessionID) error {
	switch {
	case relay.HasCode(err, relay.CodeNotFound):
		return pkgerrors.Wrapf(domain.ErrUnknownSession, "session %s", id)
	case relay.HasCode(err, relay.CodeNoKey), relay.HasCode(err, relay.CodeForbidden):
		return pkgerrors.Wrapf(domain.ErrNoAccess, "session %s", id)
	default:
		return pkgerrors.Wrapf(err, "fetch key of session %s", id)
	}
}

// RetrieveSession fetches and opens the key of session id. With lookupGroupKey the
// key server may answer with a key wrapped for a group the user belongs to.
func (s *Service) RetrieveSession(
	ctx context.Context,
	sid domain.SessionID,
	useCache bool,
	lookupGroupKey bool,
) (domain.EncryptionSession, error) {
	if useCache {
		if sess, ok := s.cache.Get(sid); ok {
			return sess, nil
		}
	}
	id, err := s.ids.Identity()
	if err != nil {
		return domain.EncryptionSession{}, err
	}
	resp, err := s.api.FetchSessionKey(ctx, sid, lookupGroupKey)
	if err != nil {
		return domain.EncryptionSession{}, mapFetchError(err, sid)
	}

	recipient := id
	retrieval := domain.RetrievalDetails{Flow: domain.FlowDirect}
	if resp.ViaGroup != "" {
		gk, err := s.groups.OpenGroupKeys(ctx, resp.ViaGroup, resp.GroupKeyID)
		if err != nil {
			return domain.EncryptionSession{}, pkgerrors.Wrapf(err, "open keys of group %s", resp.ViaGroup)
		}
		recipient = gk.Identity()
		retrieval = domain.RetrievalDetails{Flow: domain.FlowViaGroup, GroupID: resp.ViaGroup}
	}
	if !resp.Key.Anonymous {
		if err := s.dir.CheckKnown(ctx, resp.Sender); err != nil {
			return domain.EncryptionSession{}, pkgerrors.Wrapf(err, "sender of session %s", sid)
		}
	}
	key, err := keywrap.Unwrap(recipient, resp.Sender, keywrap.SessionSubject(sid), resp.Key)
	if err != nil {
		return domain.EncryptionSession{}, pkgerrors.Wrapf(err, "unwrap key of session %s", sid)
	}
	s.log.Debug().Str("session", sid.String()).Str("flow", retrieval.Flow.String()).Msg("session retrieved")

	sess := domain.EncryptionSession{
		ID:        sid,
		Key:       key,
		CreatedBy: resp.CreatedBy,
		Retrieval: retrieval,
	}
	if useCache {
		sess = s.cache.Put(sess)
	}
	return sess, nil
}

// RetrieveMultipleSessions retrieves every session in ids, in order, stopping at the
// first failure.
func (s *Service) RetrieveMultipleSessions(
	ctx context.Context,
	ids []domain.SessionID,
	useCache bool,
	lookupGroupKey bool,
) ([]domain.EncryptionSession, error) {
	out := make([]domain.EncryptionSession, 0, len(ids))
	for _, sid := range ids {
		sess, err := s.RetrieveSession(ctx, sid, useCache, lookupGroupKey)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// AddRecipients shares sess with more users or groups. Recipients the key server does
// not know are reported in the result instead of failing the whole call.
func (s *Service) AddRecipients(
	ctx context.Context,
	sess domain.EncryptionSession,
	recipients []domain.RecipientWithRights,
) (map[string]domain.ActionStatus, error) {
	id, err := s.identity()
	if err != nil {
		return nil, err
	}
	statuses := make(map[string]domain.ActionStatus, len(recipients))
	rights := make(map[string]domain.RecipientRights, len(recipients))
	var known []domain.RecipientWithRights
	var resolved []domain.Recipient
	for _, r := range recipients {
		if _, seen := rights[r.ID]; seen || r.ID == "" {
			continue
		}
		rights[r.ID] = r.Rights
		res, err := s.api.ResolveRecipients(ctx, []string{r.ID})
		if relay.IsNotFound(err) {
			statuses[r.ID] = domain.ActionStatus{ErrorCode: relay.CodeNotFound}
			continue
		}
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "resolve %s", r.ID)
		}
		known = append(known, r)
		resolved = append(resolved, res...)
	}
	if len(known) == 0 {
		return statuses, nil
	}

	keys, err := s.wrapFor(ctx, id, sess.ID, sess.Key, resolved, rights)
	if err != nil {
		return nil, err
	}
	resp, err := s.api.AddSessionRecipients(ctx, sess.ID, domain.AddRecipientsRequest{
		Recipients: known,
		Keys:       keys,
	})
	if err != nil {
		return nil, mapFetchError(err, sess.ID)
	}
	for k, v := range resp.Recipients {
		statuses[k] = v
	}
	s.cache.Remove(sess.ID)
	return statuses, nil
}

func (s *Service) revoke(ctx context.Context, sid domain.SessionID, req domain.RevokeRequest) (domain.RevokeResult, error) {
	res, err := s.api.RevokeSessionRecipients(ctx, sid, req)
	if err != nil {
		return domain.RevokeResult{}, mapFetchError(err, sid)
	}
	s.cache.Remove(sid)
	return res, nil
}

// RevokeRecipients removes users or groups from session sid.
func (s *Service) RevokeRecipients(ctx context.Context, sid domain.SessionID, recipients []string) (domain.RevokeResult, error) {
	if len(recipients) == 0 {
		return domain.RevokeResult{}, pkgerrors.Wrap(domain.ErrInvalidArgument, "no recipients to revoke")
	}
	return s.revoke(ctx, sid, domain.RevokeRequest{Recipients: recipients})
}

// RevokeAll removes every recipient, the caller included.
func (s *Service) RevokeAll(ctx context.Context, sid domain.SessionID) (domain.RevokeResult, error) {
	return s.revoke(ctx, sid, domain.RevokeRequest{All: true})
}

// RevokeOthers removes every recipient but the caller.
func (s *Service) RevokeOthers(ctx context.Context, sid domain.SessionID) (domain.RevokeResult, error) {
	return s.revoke(ctx, sid, domain.RevokeRequest{Others: true})
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)
