package session

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/cardforge/arena/player"
)

func registrySession(matchID, a, b string) *Session {
	return New(matchID,
		NewPlayerState(player.New(a, a, "", ""), nil),
		NewPlayerState(player.New(b, b, "", ""), nil),
		newCapture(),
		Options{},
		zerolog.Nop(),
	)
}

func TestRegistryAddAndLookup(t *testing.T) {
	r := NewRegistry()
	s := registrySession("m1", "alice", "bob")
	assert.NilError(t, r.Add(s))

	got, ok := r.Get("m1")
	assert.Assert(t, ok)
	assert.Equal(t, got.ID, "m1")

	got, ok = r.ByPlayer("bob")
	assert.Assert(t, ok)
	assert.Equal(t, got.ID, "m1")
	assert.Equal(t, r.Len(), 1)
}

func TestRegistryRejectsBusyPlayer(t *testing.T) {
	r := NewRegistry()
	assert.NilError(t, r.Add(registrySession("m1", "alice", "bob")))

	err := r.Add(registrySession("m2", "bob", "carol"))
	assert.Assert(t, eris.Is(eris.Cause(err), ErrPlayerBusy))

	// The failed Add must not have indexed carol.
	_, ok := r.ByPlayer("carol")
	assert.Assert(t, !ok)
	assert.Equal(t, r.Len(), 1)
}

func TestRegistryRemoveFreesPlayers(t *testing.T) {
	r := NewRegistry()
	assert.NilError(t, r.Add(registrySession("m1", "alice", "bob")))
	r.Remove("m1")

	_, ok := r.Get("m1")
	assert.Assert(t, !ok)
	assert.NilError(t, r.Add(registrySession("m2", "bob", "carol")))
}

func TestRegistryForEachAllowsRemove(t *testing.T) {
	r := NewRegistry()
	assert.NilError(t, r.Add(registrySession("m1", "a1", "b1")))
	assert.NilError(t, r.Add(registrySession("m2", "a2", "b2")))

	r.ForEach(func(s *Session) {
		r.Remove(s.ID)
	})
	assert.Equal(t, r.Len(), 0)
}
