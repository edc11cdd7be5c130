package card

// Rarity buckets card definitions into the tiers used by pack recipes and
// stock seeding.
type Rarity string

const (
	RarityBasic     Rarity = "basic"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// EffectKind tags a card with the effect resolved when it is played. Dispatch
// happens in a single place (Resolve) so the set of effects stays exhaustive.
type EffectKind string

const (
	EffectAttack    EffectKind = "attack"
	EffectDefense   EffectKind = "defense"
	EffectMagic     EffectKind = "magic"
	EffectAttribute EffectKind = "attribute"
	EffectEquipment EffectKind = "equipment"
	EffectScenario  EffectKind = "scenario"
	EffectCombo     EffectKind = "combo"
	EffectCounter   EffectKind = "counter"
)

// Card is an immutable definition. Player collections and decks hold card IDs,
// never copies of the definition.
type Card struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Attack  int        `json:"attack"`
	Defense int        `json:"defense"`
	Rarity  Rarity     `json:"rarity"`
	Effect  EffectKind `json:"effect"`
	Cost    int        `json:"cost"`
	// ComboWith names the card that must already have been played this turn
	// for a combo card to land its bonus damage.
	ComboWith string `json:"combo_with,omitempty"`
}
