package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sealkit/internal/domain"
	"sealkit/internal/relay"
)

func TestMergeRecipients(t *testing.T) {
	read := domain.RecipientRights{Read: true}
	fwd := domain.RecipientRights{Forward: true}
	got := mergeRecipients("alice", []domain.RecipientWithRights{
		{ID: "bob", Rights: read},
		{ID: "alice", Rights: read},
		{ID: ""},
		{ID: "bob", Rights: fwd},
		{ID: "team", Rights: read},
	})
	assert.Equal(t, []domain.RecipientWithRights{
		{ID: "alice", Rights: domain.DefaultRights()},
		{ID: "bob", Rights: domain.RecipientRights{Read: true, Forward: true}},
		{ID: "team", Rights: read},
	}, got)
}

func TestTemporary(t *testing.T) {
	assert.True(t, temporary(&relay.APIError{Status: 503, Code: relay.CodeInternal}))
	assert.False(t, temporary(&relay.APIError{Status: 403, Code: relay.CodeForbidden}))
	assert.False(t, temporary(mapFetchError(&relay.APIError{Status: 404, Code: relay.CodeNoKey}, "s1")))
	assert.True(t, temporary(mapFetchError(&relay.APIError{Status: 502, Code: relay.CodeInternal}, "s1")))
}
