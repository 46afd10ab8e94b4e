package confirm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ArmAndCommit(t *testing.T) {
	r := NewRegistry(time.Minute)

	token := r.Arm("alice", ActionResetSavings)
	require.NotEmpty(t, token)

	require.NoError(t, r.Commit("alice", ActionResetSavings, token))
	assert.ErrorIs(t, r.Commit("alice", ActionResetSavings, token), ErrNotArmed, "token must be single-use")
}

func TestRegistry_Rejects(t *testing.T) {
	r := NewRegistry(time.Minute)
	token := r.Arm("alice", ActionResetAll)

	tests := []struct {
		name   string
		user   string
		action Action
		token  string
	}{
		{name: "empty token", user: "alice", action: ActionResetAll, token: ""},
		{name: "wrong token", user: "alice", action: ActionResetAll, token: "nope"},
		{name: "other action", user: "alice", action: ActionResetSavings, token: token},
		{name: "other user", user: "bob", action: ActionResetAll, token: token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.Commit(tt.user, tt.action, tt.token), ErrNotArmed)
		})
	}

	assert.NoError(t, r.Commit("alice", ActionResetAll, token), "failed attempts must not consume the token")
}

func TestRegistry_Expiry(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Minute)
	r.now = func() time.Time { return now }

	token := r.Arm("alice", ActionResetSavings)
	now = now.Add(2 * time.Minute)

	assert.ErrorIs(t, r.Commit("alice", ActionResetSavings, token), ErrNotArmed)
}

func TestRegistry_RearmReplacesToken(t *testing.T) {
	r := NewRegistry(time.Minute)

	first := r.Arm("alice", ActionResetSavings)
	second := r.Arm("alice", ActionResetSavings)

	assert.ErrorIs(t, r.Commit("alice", ActionResetSavings, first), ErrNotArmed)
	assert.NoError(t, r.Commit("alice", ActionResetSavings, second))
}

func TestRegistry_Disarm(t *testing.T) {
	r := NewRegistry(0)
	token := r.Arm("alice", ActionResetAll)

	r.Disarm("alice", ActionResetAll)
	assert.ErrorIs(t, r.Commit("alice", ActionResetAll, token), ErrNotArmed)
}

func TestRegistry_CheckThenRelease(t *testing.T) {
	r := NewRegistry(time.Minute)
	token := r.Arm("alice", ActionResetAll)

	require.NoError(t, r.Check("alice", ActionResetAll, token))
	require.NoError(t, r.Check("alice", ActionResetAll, token), "check must not consume the token")
	assert.ErrorIs(t, r.Check("alice", ActionResetAll, "nope"), ErrNotArmed)

	r.Release("alice", ActionResetAll, "nope")
	require.NoError(t, r.Check("alice", ActionResetAll, token), "release with a wrong token is a no-op")

	r.Release("alice", ActionResetAll, token)
	assert.ErrorIs(t, r.Check("alice", ActionResetAll, token), ErrNotArmed)
}
