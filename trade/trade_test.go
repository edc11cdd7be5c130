package trade

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/cardforge/arena/lock"
	"github.com/cardforge/arena/player"
)

type capture struct {
	mu    sync.Mutex
	lines map[string][]string
}

func newCapture() *capture {
	return &capture{lines: map[string][]string{}}
}

func (c *capture) Publish(_ context.Context, playerID, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines[playerID] = append(c.lines[playerID], line)
	return nil
}

func (c *capture) has(playerID, prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range c.lines[playerID] {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// fakeCluster is an in-process lock.Cluster; busy makes every Acquire fail.
type fakeCluster struct {
	mu   sync.Mutex
	held bool
	busy bool
}

func (f *fakeCluster) Acquire(context.Context, string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy || f.held {
		return "", false, nil
	}
	f.held = true
	return "token", true, nil
}

func (f *fakeCluster) Release(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	return nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *player.MemoryStore, *capture, *fakeCluster) {
	t.Helper()
	store := player.NewMemoryStore()
	pub := newCapture()
	cluster := &fakeCluster{}
	c := NewCoordinator(store, cluster, pub, zerolog.Nop())
	return c, store, pub, cluster
}

func seedPlayer(t *testing.T, store *player.MemoryStore, id string, cards ...string) {
	t.Helper()
	p := player.New(id, id, "", "")
	p.AddCards(cards)
	assert.NilError(t, store.Save(context.Background(), p))
}

func TestProposeMissingOfferedCards(t *testing.T) {
	ctx := context.Background()
	c, store, _, _ := newTestCoordinator(t)
	seedPlayer(t, store, "alice", "a1")
	seedPlayer(t, store, "bob", "b1")

	_, err := c.Propose(ctx, "alice", "bob", []string{"a1", "ghost"}, []string{"b1"})
	assert.Assert(t, eris.Is(eris.Cause(err), ErrMissingOffered))
}

func TestProposeMissingRequestedCards(t *testing.T) {
	ctx := context.Background()
	c, store, _, _ := newTestCoordinator(t)
	seedPlayer(t, store, "alice", "a1")
	seedPlayer(t, store, "bob", "b1")

	_, err := c.Propose(ctx, "alice", "bob", []string{"a1"}, []string{"ghost"})
	assert.Assert(t, eris.Is(eris.Cause(err), ErrMissingRequested))
}

func TestProposeNotifiesTarget(t *testing.T) {
	ctx := context.Background()
	c, store, pub, _ := newTestCoordinator(t)
	seedPlayer(t, store, "alice", "a1")
	seedPlayer(t, store, "bob", "b1")

	p, err := c.Propose(ctx, "alice", "bob", []string{"a1"}, []string{"b1"})
	assert.NilError(t, err)
	assert.Equal(t, p.Status, StatusPending)
	assert.Assert(t, pub.has("bob", "UPDATE:TRADE_PROPOSAL:"+p.ID+":alice:a1:b1"))
}

func TestAcceptExecutesSwap(t *testing.T) {
	ctx := context.Background()
	c, store, pub, _ := newTestCoordinator(t)
	seedPlayer(t, store, "alice", "a1", "a2")
	seedPlayer(t, store, "bob", "b1")

	p, err := c.Propose(ctx, "alice", "bob", []string{"a1"}, []string{"b1"})
	assert.NilError(t, err)
	assert.NilError(t, c.Accept(ctx, "bob", p.ID))

	got, ok := c.Get(p.ID)
	assert.Assert(t, ok)
	assert.Equal(t, got.Status, StatusCompleted)

	alice, err := store.FindByID(ctx, "alice")
	assert.NilError(t, err)
	assert.DeepEqual(t, alice.Collection, []string{"a2", "b1"})

	bob, err := store.FindByID(ctx, "bob")
	assert.NilError(t, err)
	assert.DeepEqual(t, bob.Collection, []string{"a1"})

	assert.Assert(t, pub.has("alice", "UPDATE:TRADE_COMPLETE:SUCCESS"))
	assert.Assert(t, pub.has("bob", "UPDATE:TRADE_COMPLETE:SUCCESS"))
}

func TestAcceptOnlyByTarget(t *testing.T) {
	ctx := context.Background()
	c, store, _, _ := newTestCoordinator(t)
	seedPlayer(t, store, "alice", "a1")
	seedPlayer(t, store, "bob", "b1")

	p, err := c.Propose(ctx, "alice", "bob", []string{"a1"}, []string{"b1"})
	assert.NilError(t, err)

	err = c.Accept(ctx, "alice", p.ID)
	assert.Assert(t, eris.Is(eris.Cause(err), ErrNotTarget))
	got, _ := c.Get(p.ID)
	assert.Equal(t, got.Status, StatusPending)
}

func TestAcceptUnknownProposal(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)
	err := c.Accept(context.Background(), "bob", "ghost")
	assert.Assert(t, eris.Is(eris.Cause(err), ErrUnknownProposal))
}

func TestRejectByEitherParty(t *testing.T) {
	ctx := context.Background()
	c, store, pub, _ := newTestCoordinator(t)
	seedPlayer(t, store, "alice", "a1")
	seedPlayer(t, store, "bob", "b1")

	p, err := c.Propose(ctx, "alice", "bob", []string{"a1"}, []string{"b1"})
	assert.NilError(t, err)
	assert.NilError(t, c.Reject(ctx, "alice", p.ID))

	got, _ := c.Get(p.ID)
	assert.Equal(t, got.Status, StatusRejected)
	assert.Assert(t, pub.has("bob", "SUCCESS:TRADE_REJECTED:"+p.ID))

	err = c.Accept(ctx, "bob", p.ID)
	assert.Assert(t, eris.Is(eris.Cause(err), ErrNotPending))
}

func TestRejectByOutsider(t *testing.T) {
	ctx := context.Background()
	c, store, _, _ := newTestCoordinator(t)
	seedPlayer(t, store, "alice", "a1")
	seedPlayer(t, store, "bob", "b1")

	p, err := c.Propose(ctx, "alice", "bob", []string{"a1"}, []string{"b1"})
	assert.NilError(t, err)

	err = c.Reject(ctx, "mallory", p.ID)
	assert.Assert(t, eris.Is(eris.Cause(err), ErrNotParticipant))
}

// A card that left the target's collection between accept and execution fails
// the whole exchange and leaves both collections untouched.
func TestExecuteRevalidationFailure(t *testing.T) {
	ctx := context.Background()
	c, store, pub, _ := newTestCoordinator(t)
	seedPlayer(t, store, "alice", "a1")
	seedPlayer(t, store, "bob", "b1")

	p, err := c.Propose(ctx, "alice", "bob", []string{"a1"}, []string{"b1"})
	assert.NilError(t, err)

	// Bob loses the promised card before accepting.
	bob, err := store.FindByID(ctx, "bob")
	assert.NilError(t, err)
	assert.NilError(t, bob.RemoveCards([]string{"b1"}))
	assert.NilError(t, store.Update(ctx, bob))

	err = c.Accept(ctx, "bob", p.ID)
	assert.Assert(t, eris.Is(eris.Cause(err), ErrMissingCards))

	// The proposal survives as ACCEPTED and both collections are unchanged.
	got, _ := c.Get(p.ID)
	assert.Equal(t, got.Status, StatusAccepted)

	alice, err := store.FindByID(ctx, "alice")
	assert.NilError(t, err)
	assert.DeepEqual(t, alice.Collection, []string{"a1"})

	assert.Assert(t, pub.has("alice", "UPDATE:TRADE_COMPLETE:FAILED_MISSING_CARDS"))
	assert.Assert(t, pub.has("bob", "UPDATE:TRADE_COMPLETE:FAILED_MISSING_CARDS"))
}

func TestExecuteLockBusy(t *testing.T) {
	ctx := context.Background()
	c, store, _, cluster := newTestCoordinator(t)
	seedPlayer(t, store, "alice", "a1")
	seedPlayer(t, store, "bob", "b1")

	p, err := c.Propose(ctx, "alice", "bob", []string{"a1"}, []string{"b1"})
	assert.NilError(t, err)

	cluster.busy = true
	err = c.Accept(ctx, "bob", p.ID)
	assert.Assert(t, eris.Is(eris.Cause(err), lock.ErrBusy))

	// Once the lock clears the accepted proposal can be retried.
	cluster.busy = false
	assert.NilError(t, c.Execute(ctx, p.ID))
	got, _ := c.Get(p.ID)
	assert.Equal(t, got.Status, StatusCompleted)
}

func TestExpireSweep(t *testing.T) {
	ctx := context.Background()
	c, store, pub, _ := newTestCoordinator(t)
	seedPlayer(t, store, "alice", "a1")
	seedPlayer(t, store, "bob", "b1")

	p, err := c.Propose(ctx, "alice", "bob", []string{"a1"}, []string{"b1"})
	assert.NilError(t, err)

	// Not yet stale.
	assert.Equal(t, c.ExpireSweep(ctx, time.Now()), 0)

	expired := c.ExpireSweep(ctx, time.Now().Add(c.ttl+time.Minute))
	assert.Equal(t, expired, 1)

	got, _ := c.Get(p.ID)
	assert.Equal(t, got.Status, StatusCancelled)
	assert.Assert(t, pub.has("alice", "UPDATE:TRADE_COMPLETE:CANCELLED"))
	assert.Assert(t, pub.has("bob", "UPDATE:TRADE_COMPLETE:CANCELLED"))
}
