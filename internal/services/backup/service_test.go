package backup_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/domain"
	"sealkit/internal/relay"
	"sealkit/internal/services/backup"
)

// memBackups is an in-memory BackupAPI.
type memBackups struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func key(user domain.UserID, lookup string) string { return string(user) + "/" + lookup }

func (m *memBackups) PutBackup(_ context.Context, rec domain.BackupRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key(rec.UserID, rec.Lookup)] = rec.Blob
	return nil
}

func (m *memBackups) GetBackup(_ context.Context, user domain.UserID, lookup string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key(user, lookup)]
	if !ok {
		return nil, &relay.APIError{Status: http.StatusNotFound, Code: relay.CodeNotFound}
	}
	return b, nil
}

func (m *memBackups) DeleteBackup(_ context.Context, user domain.UserID, lookup string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key(user, lookup))
	return nil
}

func fastParams() backup.Params {
	return backup.Params{ScryptWorkFactor: 10, ArgonTime: 1, ArgonMemory: 1024, ArgonThreads: 1}
}

func TestBackup_RoundTripAndPasswordChange(t *testing.T) {
	api := &memBackups{blobs: map[string][]byte{}}
	svc := backup.New(api, fastParams(), zerolog.Nop())
	ctx := context.Background()
	identity := []byte("exported identity bytes")

	require.NoError(t, svc.SaveIdentity(ctx, "alice", "correct horse", identity))
	for _, blob := range api.blobs {
		assert.NotContains(t, string(blob), "exported identity")
	}

	got, err := svc.RetrieveIdentity(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, identity, got)

	_, err = svc.RetrieveIdentity(ctx, "alice", "wrong horse")
	assert.ErrorIs(t, err, backup.ErrNoBackup)
	_, err = svc.RetrieveIdentity(ctx, "bob", "correct horse")
	assert.ErrorIs(t, err, backup.ErrNoBackup)

	require.NoError(t, svc.ChangeIdentityPassword(ctx, "alice", "correct horse", "battery staple"))
	_, err = svc.RetrieveIdentity(ctx, "alice", "correct horse")
	assert.ErrorIs(t, err, backup.ErrNoBackup)
	got, err = svc.RetrieveIdentity(ctx, "alice", "battery staple")
	require.NoError(t, err)
	assert.Equal(t, identity, got)
	assert.Len(t, api.blobs, 1)
}

func TestBackup_EmptyPassword(t *testing.T) {
	svc := backup.New(&memBackups{blobs: map[string][]byte{}}, fastParams(), zerolog.Nop())
	err := svc.SaveIdentity(context.Background(), "alice", "", []byte("x"))
	assert.ErrorIs(t, err, backup.ErrWeakPassword)
}
