package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"

	"github.com/cardforge/arena/card"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return NewStore(client, card.DefaultCatalog(), "arena-test", zerolog.Nop())
}

func TestClaimDecrementsStock(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	assert.NilError(t, store.SetStock(ctx, "basic-0", 2))

	def, err := store.Claim(ctx, "basic-0")
	assert.NilError(t, err)
	assert.Equal(t, def.ID, "basic-0")

	n, err := store.Stock(ctx, "basic-0")
	assert.NilError(t, err)
	assert.Equal(t, n, int64(1))
}

func TestClaimUnknownCard(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Claim(context.Background(), "no-such-card")
	assert.Assert(t, eris.Is(eris.Cause(err), ErrUnknownCard))
}

func TestClaimExhaustedLeavesCounterAtZero(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	assert.NilError(t, store.SetStock(ctx, "basic-0", 0))

	_, err := store.Claim(ctx, "basic-0")
	assert.Assert(t, eris.Is(eris.Cause(err), ErrOutOfStock))

	n, err := store.Stock(ctx, "basic-0")
	assert.NilError(t, err)
	assert.Equal(t, n, int64(0))
}

// One unit of stock, many concurrent claimants: exactly one wins and the
// counter never goes negative.
func TestConcurrentClaimsSingleUnit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	assert.NilError(t, store.SetStock(ctx, "legendary-0", 1))

	const claimants = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, claimants)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Claim(ctx, "legendary-0"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	assert.Equal(t, won, 1)

	n, err := store.Stock(ctx, "legendary-0")
	assert.NilError(t, err)
	assert.Equal(t, n, int64(0))
}

func TestRandomByRarityOnlyClaimsTier(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	assert.NilError(t, store.EnsureSeeded(ctx))

	def, err := store.RandomByRarity(ctx, card.RarityRare)
	assert.NilError(t, err)
	assert.Equal(t, def.Rarity, card.RarityRare)
}

func TestRandomByRarityExhaustedTier(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, id := range card.DefaultCatalog().IDsByRarity(card.RarityEpic) {
		assert.NilError(t, store.SetStock(ctx, id, 0))
	}

	_, err := store.RandomByRarity(ctx, card.RarityEpic)
	assert.Assert(t, eris.Is(eris.Cause(err), ErrOutOfStock))
}

func TestEnsureSeededIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	assert.NilError(t, store.EnsureSeeded(ctx))

	// A later run must not reset counters a claim already moved.
	_, err := store.Claim(ctx, "basic-0")
	assert.NilError(t, err)
	assert.NilError(t, store.EnsureSeeded(ctx))

	n, err := store.Stock(ctx, "basic-0")
	assert.NilError(t, err)
	assert.Equal(t, n, int64(seedBasic-1))
}

func TestOpenPackGrantsOneCardPerSlot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	assert.NilError(t, store.EnsureSeeded(ctx))

	pack, ok := PackByName("premium")
	assert.Assert(t, ok)

	granted, err := store.OpenPack(ctx, pack)
	assert.NilError(t, err)
	assert.Equal(t, len(granted), len(pack.Slots))
}

func TestOpenPackFallsBackWhenTierExhausted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	catalog := card.DefaultCatalog()
	for _, id := range catalog.IDs() {
		n := int64(10)
		if def, _ := catalog.ByID(id); def.Rarity == card.RarityLegendary {
			n = 0
		}
		assert.NilError(t, store.SetStock(ctx, id, n))
	}

	pack, ok := PackByName("legendary")
	assert.Assert(t, ok)
	granted, err := store.OpenPack(ctx, pack)
	assert.NilError(t, err)
	// The legendary slot is filled from whatever tier still has stock.
	assert.Equal(t, len(granted), len(pack.Slots))
}

func TestOpenPackAllStockGone(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, id := range card.DefaultCatalog().IDs() {
		assert.NilError(t, store.SetStock(ctx, id, 0))
	}

	pack, _ := PackByName("basic")
	_, err := store.OpenPack(ctx, pack)
	assert.Assert(t, eris.Is(eris.Cause(err), ErrOutOfStock))
}
