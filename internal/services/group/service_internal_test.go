package group

import (
	"context"
	"net/http"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/codec"
	"sealkit/internal/domain"
	"sealkit/internal/relay"
)

func TestAppendMissing(t *testing.T) {
	got := appendMissing([]domain.UserID{"alice"}, "bob", "alice", "", "carol", "bob")
	assert.Equal(t, []domain.UserID{"alice", "bob", "carol"}, got)
}

func TestNewGeneration(t *testing.T) {
	a, err := newGeneration("g1", nil)
	require.NoError(t, err)
	b, err := newGeneration("g1", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.KeyID, b.KeyID)
	assert.NotEqual(t, a.XPub, b.XPub)

	id := a.Identity()
	assert.Equal(t, domain.UserID("g1"), id.UserID)
	assert.Equal(t, a.KeyID, id.DeviceID)

	raw, err := codec.Marshal(a)
	require.NoError(t, err)
	var back domain.GroupKeys
	require.NoError(t, codec.Unmarshal(raw, &back))
	assert.Equal(t, a, back)
}

type fixedIdentity struct{}

func (fixedIdentity) Identity() (domain.Identity, error) {
	return domain.Identity{UserID: "alice", DeviceID: "a1"}, nil
}

// removalAPI accepts removals and fails every group lookup with err.
type removalAPI struct {
	API
	err     error
	removed []domain.UserID
	lookups int
}

func (a *removalAPI) RemoveGroupMembers(_ context.Context, _ domain.GroupID, members []domain.UserID) error {
	a.removed = append(a.removed, members...)
	return nil
}

func (a *removalAPI) GetGroup(context.Context, domain.GroupID) (domain.Group, error) {
	a.lookups++
	return domain.Group{}, a.err
}

func newRemovalService(api API) *Service {
	s := New(fixedIdentity{}, api, nil, nil, zerolog.Nop())
	s.renewBackOff = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2) }
	return s
}

func TestRemoveGroupMembers_RenewalRetriedThenPending(t *testing.T) {
	api := &removalAPI{err: &relay.APIError{Status: http.StatusServiceUnavailable, Code: relay.CodeInternal}}
	s := newRemovalService(api)

	err := s.RemoveGroupMembers(context.Background(), "g1", []domain.UserID{"bob"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenewalPending)
	assert.True(t, relay.HasCode(err, relay.CodeInternal))
	assert.Equal(t, []domain.UserID{"bob"}, api.removed)
	assert.Equal(t, 3, api.lookups)
}

func TestRemoveGroupMembers_PermanentRenewalFailure(t *testing.T) {
	api := &removalAPI{err: &relay.APIError{Status: http.StatusForbidden, Code: relay.CodeForbidden}}
	s := newRemovalService(api)

	err := s.RemoveGroupMembers(context.Background(), "g1", []domain.UserID{"bob"})
	assert.ErrorIs(t, err, ErrRenewalPending)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, 1, api.lookups)
}
