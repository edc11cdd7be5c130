package inventory

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cardforge/arena/card"
)

// Pack is a fixed purchase recipe: a price and an ordered list of rarity
// slots, each resolved by one claim.
type Pack struct {
	Type  string
	Price int64
	Slots []card.Rarity
}

var packs = map[string]Pack{
	"basic": {
		Type:  "basic",
		Price: 100,
		Slots: []card.Rarity{card.RarityBasic, card.RarityBasic, card.RarityBasic},
	},
	"premium": {
		Type:  "premium",
		Price: 250,
		Slots: []card.Rarity{card.RarityBasic, card.RarityBasic, card.RarityRare, card.RarityRare},
	},
	"legendary": {
		Type:  "legendary",
		Price: 600,
		Slots: []card.Rarity{card.RarityBasic, card.RarityRare, card.RarityEpic, card.RarityEpic, card.RarityLegendary},
	},
}

// PackByName returns the recipe for a pack type.
func PackByName(name string) (Pack, bool) {
	p, ok := packs[name]
	return p, ok
}

// OpenPack claims one card per slot. A slot whose tier is exhausted falls
// back to a claim over the whole catalog; a slot that cannot be filled at all
// is skipped. Every returned card corresponds to exactly one successful
// claim. ErrOutOfStock is returned only when no slot could be filled.
func (s *Store) OpenPack(ctx context.Context, p Pack) ([]card.Card, error) {
	granted := make([]card.Card, 0, len(p.Slots))
	for _, rarity := range p.Slots {
		def, err := s.RandomByRarity(ctx, rarity)
		if eris.Is(eris.Cause(err), ErrOutOfStock) {
			def, err = s.ClaimAny(ctx)
			if eris.Is(eris.Cause(err), ErrOutOfStock) {
				s.log.Warn().Str("pack", p.Type).Str("rarity", string(rarity)).
					Msg("pack slot skipped: no stock anywhere")
				continue
			}
		}
		if err != nil {
			return granted, err
		}
		granted = append(granted, def)
	}
	if len(granted) == 0 {
		return nil, eris.Wrapf(ErrOutOfStock, "pack %q", p.Type)
	}
	return granted, nil
}
