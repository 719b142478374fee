package group

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sealkit/internal/codec"
	"sealkit/internal/crypto"
	"sealkit/internal/domain"
	"sealkit/internal/protocol/keywrap"
	"sealkit/internal/relay"
	"sealkit/internal/sigchain"
)

// ErrBadGroupKeys is returned when unwrapped group keys do not describe the requested
// generation.
var ErrBadGroupKeys = errors.New("group keys do not match the requested generation")

// ErrRenewalPending is returned when members were removed but the group key could not
// be renewed afterwards. Call RenewGroupKey before sharing with the group again.
var ErrRenewalPending = errors.New("members removed, group key renewal pending")

// IdentitySource returns the current device identity.
type IdentitySource interface {
	Identity() (domain.Identity, error)
}

// API is the part of the key server the group service uses.
type API interface {
	domain.GroupAPI
	Sigchain(ctx context.Context, user domain.UserID) ([]domain.SigchainEntry, error)
}

// Directory vouches for device keys with their owner's sigchain.
type Directory interface {
	ActiveDevices(ctx context.Context, owner string) (map[domain.DeviceID]domain.DevicePublic, error)
	CheckKnown(ctx context.Context, dev domain.DevicePublic) error
	Invalidate(owner string)
}

// Service implements domain.GroupService.
type Service struct {
	ids  IdentitySource
	api  API
	dir  Directory
	keys domain.GroupKeyStore
	log  zerolog.Logger
	now  func() time.Time

	renewBackOff func() backoff.BackOff
}

// New returns a group service.
func New(ids IdentitySource, api API, dir Directory, keys domain.GroupKeyStore, log zerolog.Logger) *Service {
	return &Service{
		ids:  ids,
		api:  api,
		dir:  dir,
		keys: keys,
		log:  log,
		now:  time.Now,
		renewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		},
	}
}

func appendMissing(users []domain.UserID, add ...domain.UserID) []domain.UserID {
	for _, u := range add {
		found := false
		for _, v := range users {
			if u == v {
				found = true
				break
			}
		}
		if !found && u != "" {
			users = append(users, u)
		}
	}
	return users
}

func newGeneration(gid domain.GroupID, keys *domain.GeneratedPrivateKeys) (domain.GroupKeys, error) {
	if keys == nil {
		k, err := crypto.GeneratePrivateKeys()
		if err != nil {
			return domain.GroupKeys{}, err
		}
		keys = &k
	}
	return domain.GroupKeys{
		GroupID: gid,
		KeyID:   domain.DeviceID(uuid.NewString()),
		XPriv:   keys.XPriv,
		XPub:    keys.XPub,
		EdPriv:  keys.EdPriv,
		EdPub:   keys.EdPub,
	}, nil
}

// wrapGeneration wraps gk for every active device of members.
func (s *Service) wrapGeneration(
	ctx context.Context,
	sender domain.Identity,
	gk domain.GroupKeys,
	members []domain.UserID,
) ([]domain.WrappedKey, error) {
	payload, err := codec.Marshal(gk)
	if err != nil {
		return nil, err
	}
	subject := keywrap.GroupSubject(gk.GroupID, gk.KeyID)
	now := s.now()
	var out []domain.WrappedKey
	for _, m := range members {
		// Member devices must be current or the key server refuses the keys.
		s.dir.Invalidate(string(m))
		devices, err := s.dir.ActiveDevices(ctx, string(m))
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "devices of member %s", m)
		}
		for _, dev := range devices {
			if !dev.Active(now) {
				continue
			}
			wk, err := keywrap.Wrap(sender, dev, subject, payload, domain.DefaultRights())
			if err != nil {
				return nil, err
			}
			out = append(out, wk)
		}
	}
	return out, nil
}

// CreateGroup registers a group administered by the current user and returns its ID.
func (s *Service) CreateGroup(ctx context.Context, opts domain.CreateGroupOptions) (domain.GroupID, error) {
	id, err := s.ids.Identity()
	if err != nil {
		return "", err
	}
	members := appendMissing([]domain.UserID{id.UserID}, opts.Members...)
	admins := appendMissing([]domain.UserID{id.UserID}, opts.Admins...)
	for _, a := range admins {
		if !(domain.Group{Members: members}).IsMember(a) {
			return "", pkgerrors.Wrapf(domain.ErrInvalidArgument, "admin %s is not a member", a)
		}
	}

	gid := domain.GroupID(uuid.NewString())
	gk, err := newGeneration(gid, opts.Keys)
	if err != nil {
		return "", err
	}
	pub := gk.Identity().Public()
	entry, err := sigchain.Next(nil, domain.SigchainCreate, pub, gk.Identity(), s.now())
	if err != nil {
		return "", err
	}
	keys, err := s.wrapGeneration(ctx, id, gk, members)
	if err != nil {
		return "", err
	}
	err = s.api.CreateGroup(ctx, domain.CreateGroupRequest{
		Group: domain.Group{
			ID:         gid,
			Name:       opts.Name,
			Members:    members,
			Admins:     admins,
			CurrentKey: pub,
		},
		Keys:     keys,
		Sigchain: entry,
	})
	if err != nil {
		return "", pkgerrors.Wrap(err, "register group")
	}
	if err := s.keys.SaveGroupKeys(gk); err != nil {
		return "", pkgerrors.Wrap(err, "save group keys")
	}
	s.log.Info().Str("group", gid.String()).Int("members", len(members)).Msg("group created")
	return gid, nil
}

func mapGroupError(err error, gid domain.GroupID) error {
	switch {
	case relay.HasCode(err, relay.CodeNotFound):
		return pkgerrors.Wrapf(domain.ErrUnknownGroup, "group %s", gid)
	case relay.HasCode(err, relay.CodeForbidden):
		return pkgerrors.Wrapf(domain.ErrForbidden, "group %s", gid)
	case relay.HasCode(err, relay.CodeNoKey):
		return pkgerrors.Wrapf(domain.ErrNoAccess, "group %s", gid)
	default:
		return pkgerrors.Wrapf(err, "group %s", gid)
	}
}

// AddGroupMembers adds members, making admins of those also listed in admins. New
// members receive every key generation so they can open sessions shared before they
// joined.
func (s *Service) AddGroupMembers(ctx context.Context, gid domain.GroupID, members, admins []domain.UserID) error {
	id, err := s.ids.Identity()
	if err != nil {
		return err
	}
	g, err := s.api.GetGroup(ctx, gid)
	if err != nil {
		return mapGroupError(err, gid)
	}
	var added []domain.UserID
	for _, m := range appendMissing(nil, members...) {
		if !g.IsMember(m) {
			added = append(added, m)
		}
	}
	var keys []domain.WrappedKey
	for _, keyID := range g.KeyHistory {
		if len(added) == 0 {
			break
		}
		gk, err := s.OpenGroupKeys(ctx, gid, keyID)
		if err != nil {
			return err
		}
		wrapped, err := s.wrapGeneration(ctx, id, gk, added)
		if err != nil {
			return err
		}
		keys = append(keys, wrapped...)
	}
	err = s.api.AddGroupMembers(ctx, gid, domain.GroupMembersRequest{Members: members, Admins: admins, Keys: keys})
	if err != nil {
		return mapGroupError(err, gid)
	}
	return nil
}

// RemoveGroupMembers removes members and renews the group key so they cannot open
// sessions shared with the group afterwards.
func (s *Service) RemoveGroupMembers(ctx context.Context, gid domain.GroupID, members []domain.UserID) error {
	if err := s.api.RemoveGroupMembers(ctx, gid, members); err != nil {
		return mapGroupError(err, gid)
	}
	err := backoff.Retry(func() error {
		err := s.RenewGroupKey(ctx, gid, nil)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(s.renewBackOff(), ctx))
	if err != nil {
		s.log.Error().Err(err).Str("group", gid.String()).Msg("members removed but group key not renewed")
		return fmt.Errorf("group %s: %w: %w", gid, ErrRenewalPending, err)
	}
	return nil
}

// retryable reports whether a failed renewal may succeed on a later attempt.
func retryable(err error) bool {
	var apiErr *relay.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// RenewGroupKey installs a new key generation wrapped for the current members.
func (s *Service) RenewGroupKey(ctx context.Context, gid domain.GroupID, keys *domain.GeneratedPrivateKeys) error {
	id, err := s.ids.Identity()
	if err != nil {
		return err
	}
	g, err := s.api.GetGroup(ctx, gid)
	if err != nil {
		return mapGroupError(err, gid)
	}
	current, err := s.OpenGroupKeys(ctx, gid, g.CurrentKey.DeviceID)
	if err != nil {
		return err
	}
	chain, err := s.api.Sigchain(ctx, domain.UserID(gid))
	if err != nil {
		return mapGroupError(err, gid)
	}
	if _, err := sigchain.Verify(chain); err != nil {
		return pkgerrors.Wrapf(err, "sigchain of group %s", gid)
	}

	next, err := newGeneration(gid, keys)
	if err != nil {
		return err
	}
	pub := next.Identity().Public()
	entry, err := sigchain.Next(chain, domain.SigchainAddDevice, pub, current.Identity(), s.now())
	if err != nil {
		return err
	}
	wrapped, err := s.wrapGeneration(ctx, id, next, g.Members)
	if err != nil {
		return err
	}
	err = s.api.RenewGroupKey(ctx, gid, domain.RenewGroupKeyRequest{Key: pub, Keys: wrapped, Sigchain: entry})
	if err != nil {
		return mapGroupError(err, gid)
	}
	if err := s.keys.SaveGroupKeys(next); err != nil {
		return pkgerrors.Wrap(err, "save group keys")
	}
	s.dir.Invalidate(string(gid))
	s.log.Info().Str("group", gid.String()).Str("key", next.KeyID.String()).Msg("group key renewed")
	return nil
}

// SetGroupAdmins replaces the admin list.
func (s *Service) SetGroupAdmins(ctx context.Context, gid domain.GroupID, admins []domain.UserID) error {
	if len(admins) == 0 {
		return pkgerrors.Wrap(domain.ErrInvalidArgument, "a group needs at least one admin")
	}
	if err := s.api.SetGroupAdmins(ctx, gid, admins); err != nil {
		return mapGroupError(err, gid)
	}
	return nil
}

// OpenGroupKeys returns the private keys of generation keyID, from the local cache or
// unwrapped from the key server.
func (s *Service) OpenGroupKeys(ctx context.Context, gid domain.GroupID, keyID domain.DeviceID) (domain.GroupKeys, error) {
	if gk, ok, err := s.keys.LoadGroupKeys(gid, keyID); err != nil {
		return domain.GroupKeys{}, pkgerrors.Wrap(err, "load group keys")
	} else if ok {
		return gk, nil
	}
	id, err := s.ids.Identity()
	if err != nil {
		return domain.GroupKeys{}, err
	}
	resp, err := s.api.FetchGroupKey(ctx, gid, keyID)
	if err != nil {
		return domain.GroupKeys{}, mapGroupError(err, gid)
	}
	if err := s.dir.CheckKnown(ctx, resp.Sender); err != nil {
		return domain.GroupKeys{}, pkgerrors.Wrapf(err, "sender of group %s keys", gid)
	}
	payload, err := keywrap.Unwrap(id, resp.Sender, keywrap.GroupSubject(gid, keyID), resp.Key)
	if err != nil {
		return domain.GroupKeys{}, pkgerrors.Wrapf(err, "unwrap keys of group %s", gid)
	}
	var gk domain.GroupKeys
	if err := codec.Unmarshal(payload, &gk); err != nil {
		return domain.GroupKeys{}, pkgerrors.Wrap(ErrBadGroupKeys, err.Error())
	}
	if gk.GroupID != gid || gk.KeyID != keyID {
		return domain.GroupKeys{}, ErrBadGroupKeys
	}
	if xpub, err := crypto.X25519PublicFromPrivate(gk.XPriv); err != nil || xpub != gk.XPub ||
		crypto.Ed25519PublicFromPrivate(gk.EdPriv) != gk.EdPub {
		return domain.GroupKeys{}, ErrBadGroupKeys
	}
	if err := s.dir.CheckKnown(ctx, gk.Identity().Public()); err != nil {
		return domain.GroupKeys{}, pkgerrors.Wrapf(err, "generation %s of group %s", keyID, gid)
	}
	if err := s.keys.SaveGroupKeys(gk); err != nil {
		return domain.GroupKeys{}, pkgerrors.Wrap(err, "save group keys")
	}
	return gk, nil
}

// Compile-time assertion that Service implements domain.GroupService.
var _ domain.GroupService = (*Service)(nil)
