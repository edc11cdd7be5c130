package card

import (
	"github.com/rotisserie/eris"
)

// Catalog is the read-only set of card definitions shared by every component.
type Catalog struct {
	byID     map[string]Card
	byRarity map[Rarity][]string
	ordered  []string
}

// NewCatalog builds a catalog from the given definitions. Duplicate IDs are
// rejected; a card referencing an unknown combo partner is allowed (the combo
// simply never triggers).
func NewCatalog(cards []Card) (*Catalog, error) {
	c := &Catalog{
		byID:     make(map[string]Card, len(cards)),
		byRarity: make(map[Rarity][]string),
	}
	for _, def := range cards {
		if def.ID == "" {
			return nil, eris.New("card definition is missing an id")
		}
		if _, ok := c.byID[def.ID]; ok {
			return nil, eris.Errorf("duplicate card id %q", def.ID)
		}
		c.byID[def.ID] = def
		c.byRarity[def.Rarity] = append(c.byRarity[def.Rarity], def.ID)
		c.ordered = append(c.ordered, def.ID)
	}
	return c, nil
}

// ByID returns the definition for the given card id.
func (c *Catalog) ByID(id string) (Card, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// IDs returns every card id in registration order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// IDsByRarity returns the card ids of one rarity tier.
func (c *Catalog) IDsByRarity(r Rarity) []string {
	ids := c.byRarity[r]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Resolve maps card ids to definitions, dropping ids the catalog does not
// know about.
func (c *Catalog) Resolve(ids []string) []Card {
	out := make([]Card, 0, len(ids))
	for _, id := range ids {
		if def, ok := c.byID[id]; ok {
			out = append(out, def)
		}
	}
	return out
}

// StarterIDs is the deck granted to fresh characters before they own anything.
func (c *Catalog) StarterIDs() []string {
	return c.IDsByRarity(RarityBasic)
}

// ResolveDeck walks the candidate id lists in order and returns the first one
// that resolves to at least one known card. It replaces the nested
// deck-not-found fallbacks with one explicit resolution chain:
// chosen deck, then default deck, then the full collection, then the starter
// set.
func ResolveDeck(c *Catalog, candidates ...[]string) []Card {
	for _, ids := range candidates {
		if len(ids) == 0 {
			continue
		}
		if deck := c.Resolve(ids); len(deck) > 0 {
			return deck
		}
	}
	return c.Resolve(c.StarterIDs())
}

// DefaultCatalog returns the built-in card set. IDs are stable; stock seeding
// and tests rely on them.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]Card{
		{ID: "basic-0", Name: "Rusty Blade", Attack: 3, Defense: 1, Rarity: RarityBasic, Effect: EffectAttack, Cost: 1},
		{ID: "basic-1", Name: "Wooden Shield", Attack: 0, Defense: 3, Rarity: RarityBasic, Effect: EffectDefense, Cost: 1},
		{ID: "basic-2", Name: "Minor Spark", Attack: 4, Defense: 0, Rarity: RarityBasic, Effect: EffectAttack, Cost: 2},
		{ID: "basic-3", Name: "Scholar's Scroll", Attack: 0, Defense: 0, Rarity: RarityBasic, Effect: EffectMagic, Cost: 1},
		{ID: "basic-4", Name: "Leather Gloves", Attack: 1, Defense: 1, Rarity: RarityBasic, Effect: EffectEquipment, Cost: 2},
		{ID: "basic-5", Name: "Feint", Attack: 2, Defense: 0, Rarity: RarityBasic, Effect: EffectCounter, Cost: 1},
		{ID: "basic-6", Name: "Follow Through", Attack: 3, Defense: 0, Rarity: RarityBasic, Effect: EffectCombo, Cost: 2, ComboWith: "basic-0"},
		{ID: "basic-7", Name: "Campfire", Attack: 0, Defense: 2, Rarity: RarityBasic, Effect: EffectDefense, Cost: 1},
		{ID: "rare-0", Name: "Steel Longsword", Attack: 6, Defense: 1, Rarity: RarityRare, Effect: EffectAttack, Cost: 3},
		{ID: "rare-1", Name: "Tower Shield", Attack: 0, Defense: 6, Rarity: RarityRare, Effect: EffectDefense, Cost: 3},
		{ID: "rare-2", Name: "Training Regimen", Attack: 2, Defense: 2, Rarity: RarityRare, Effect: EffectAttribute, Cost: 3},
		{ID: "rare-3", Name: "Arcane Library", Attack: 0, Defense: 0, Rarity: RarityRare, Effect: EffectMagic, Cost: 2},
		{ID: "rare-4", Name: "Twin Strike", Attack: 4, Defense: 0, Rarity: RarityRare, Effect: EffectCombo, Cost: 3, ComboWith: "rare-0"},
		{ID: "rare-5", Name: "Ward Sigil", Attack: 3, Defense: 1, Rarity: RarityRare, Effect: EffectCounter, Cost: 2},
		{ID: "epic-0", Name: "Dragonfang", Attack: 9, Defense: 2, Rarity: RarityEpic, Effect: EffectAttack, Cost: 5},
		{ID: "epic-1", Name: "Enchanted Plate", Attack: 1, Defense: 8, Rarity: RarityEpic, Effect: EffectEquipment, Cost: 5},
		{ID: "epic-2", Name: "Ley Line Surge", Attack: 0, Defense: 0, Rarity: RarityEpic, Effect: EffectScenario, Cost: 4},
		{ID: "epic-3", Name: "Mentor's Blessing", Attack: 3, Defense: 3, Rarity: RarityEpic, Effect: EffectAttribute, Cost: 4},
		{ID: "legendary-0", Name: "Worldsplitter", Attack: 14, Defense: 3, Rarity: RarityLegendary, Effect: EffectAttack, Cost: 8},
		{ID: "legendary-1", Name: "Aegis of Dawn", Attack: 2, Defense: 12, Rarity: RarityLegendary, Effect: EffectDefense, Cost: 7},
	})
	if err != nil {
		// The built-in set is a compile-time constant in practice.
		panic(err)
	}
	return c
}
