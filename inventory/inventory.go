// Package inventory holds the shared per-card stock counters. Counters live
// in redis so every instance claims against the same numbers; the claim
// itself is a server-side script, which is what keeps stock from ever being
// observably negative under concurrent claims.
package inventory

import (
	"context"
	"math/rand"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/cardforge/arena/card"
)

// ErrOutOfStock is returned when a claim finds no remaining stock. The
// counter is left untouched.
var ErrOutOfStock = eris.New("card out of stock")

// ErrUnknownCard is returned when the card id is not in the catalog.
var ErrUnknownCard = eris.New("unknown card")

// claimScript atomically test-and-decrements a counter, refusing to cross
// zero. Returns the remaining stock, or -1 when nothing was claimed.
var claimScript = redis.NewScript(`
local v = tonumber(redis.call("get", KEYS[1]))
if not v or v <= 0 then
	return -1
end
return redis.call("decr", KEYS[1])
`)

// Store exposes atomic claims against the shared stock.
type Store struct {
	client    *redis.Client
	catalog   *card.Catalog
	namespace string
	log       zerolog.Logger
}

func NewStore(client *redis.Client, catalog *card.Catalog, namespace string, log zerolog.Logger) *Store {
	return &Store{
		client:    client,
		catalog:   catalog,
		namespace: namespace,
		log:       log.With().Str("component", "inventory").Logger(),
	}
}

func (s *Store) stockKey(cardID string) string {
	return s.namespace + ":stock:" + cardID
}

// Claim atomically takes one unit of stock for the card and returns its
// definition. On ErrOutOfStock no counter change is observable.
func (s *Store) Claim(ctx context.Context, cardID string) (card.Card, error) {
	def, ok := s.catalog.ByID(cardID)
	if !ok {
		return card.Card{}, eris.Wrapf(ErrUnknownCard, "id %q", cardID)
	}
	remaining, err := claimScript.Run(ctx, s.client, []string{s.stockKey(cardID)}).Int64()
	if err != nil {
		return card.Card{}, eris.Wrap(err, "claim script failed")
	}
	if remaining < 0 {
		return card.Card{}, eris.Wrapf(ErrOutOfStock, "card %q", cardID)
	}
	return def, nil
}

// RandomByRarity claims a random card of the given tier among ids that still
// have stock. ErrOutOfStock means the whole tier is exhausted.
func (s *Store) RandomByRarity(ctx context.Context, r card.Rarity) (card.Card, error) {
	return s.randomClaim(ctx, s.catalog.IDsByRarity(r))
}

// ClaimAny claims a random card of any rarity; the pack-opening fallback when
// a tier is exhausted.
func (s *Store) ClaimAny(ctx context.Context) (card.Card, error) {
	return s.randomClaim(ctx, s.catalog.IDs())
}

// randomClaim walks the candidate ids in random order, claiming the first one
// with stock. The claim is the only authority: a draw that loses a race to a
// concurrent claim just moves on to the next candidate.
func (s *Store) randomClaim(ctx context.Context, ids []string) (card.Card, error) {
	ids = append([]string(nil), ids...)
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	for _, id := range ids {
		def, err := s.Claim(ctx, id)
		if err == nil {
			return def, nil
		}
		if eris.Is(eris.Cause(err), ErrOutOfStock) {
			continue
		}
		return card.Card{}, err
	}
	return card.Card{}, eris.Wrap(ErrOutOfStock, "no candidate has stock")
}

// Stock reads the current counter for a card. Missing keys read as zero.
func (s *Store) Stock(ctx context.Context, cardID string) (int64, error) {
	v, err := s.client.Get(ctx, s.stockKey(cardID)).Int64()
	if eris.Is(eris.Cause(err), redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "failed to read stock")
	}
	return v, nil
}

// SetStock overwrites a counter; used by seeding and tests.
func (s *Store) SetStock(ctx context.Context, cardID string, n int64) error {
	if err := s.client.Set(ctx, s.stockKey(cardID), n, 0).Err(); err != nil {
		return eris.Wrap(err, "failed to set stock")
	}
	return nil
}

// Default stock levels per rarity tier.
const (
	seedBasic     = 200
	seedRare      = 80
	seedEpic      = 30
	seedLegendary = 8
)

// EnsureSeeded initializes every catalog counter that does not exist yet.
// SETNX makes it safe for all instances to run at startup.
func (s *Store) EnsureSeeded(ctx context.Context) error {
	for _, id := range s.catalog.IDs() {
		def, _ := s.catalog.ByID(id)
		n := int64(seedBasic)
		switch def.Rarity {
		case card.RarityRare:
			n = seedRare
		case card.RarityEpic:
			n = seedEpic
		case card.RarityLegendary:
			n = seedLegendary
		}
		set, err := s.client.SetNX(ctx, s.stockKey(id), n, 0).Result()
		if err != nil {
			return eris.Wrapf(err, "failed to seed stock for %q", id)
		}
		if set {
			s.log.Debug().Str("card", id).Int64("stock", n).Msg("seeded stock counter")
		}
	}
	return nil
}
