package player

import (
	"github.com/rotisserie/eris"
)

const (
	startingHealth  = 30
	startingCoins   = 500
	startingRating  = 1000
	startingAttack  = 2
	startingDefense = 2
	startingMana    = 3
)

// Player is the persistent aggregate for one account. Combat-time values
// (session HP, resource pool) live on the session; this record carries the
// base attributes sessions are seeded from.
type Player struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Race          string              `json:"race"`
	Class         string              `json:"class"`
	Health        int                 `json:"health"`
	BaseAttack    int                 `json:"base_attack"`
	BaseDefense   int                 `json:"base_defense"`
	BaseMana      int                 `json:"base_mana"`
	Coins         int64               `json:"coins"`
	Rating        int                 `json:"rating"`
	UpgradePoints int                 `json:"upgrade_points"`
	// Collection holds card ids with multiplicity: owning two copies means
	// the id appears twice.
	Collection []string            `json:"collection"`
	Decks      map[string][]string `json:"decks,omitempty"`
}

// New creates a fresh player with base attributes derived from race and
// class. Unknown labels get the baseline; known ones shift one stat.
func New(id, name, race, class string) *Player {
	p := &Player{
		ID:          id,
		Name:        name,
		Race:        race,
		Class:       class,
		Health:      startingHealth,
		BaseAttack:  startingAttack,
		BaseDefense: startingDefense,
		BaseMana:    startingMana,
		Coins:       startingCoins,
		Rating:      startingRating,
		Decks:       map[string][]string{},
	}
	switch race {
	case "orc":
		p.BaseAttack++
	case "dwarf":
		p.BaseDefense++
	case "elf":
		p.BaseMana++
	}
	switch class {
	case "warrior":
		p.BaseAttack++
	case "guardian":
		p.BaseDefense++
	case "mage":
		p.BaseMana++
	}
	return p
}

// ErrMissingCards is returned when a removal asks for cards the collection
// does not hold.
var ErrMissingCards = eris.New("collection is missing requested cards")

// HasAll reports whether the collection holds every id, respecting
// multiplicity.
func (p *Player) HasAll(ids []string) bool {
	need := countIDs(ids)
	have := countIDs(p.Collection)
	for id, n := range need {
		if have[id] < n {
			return false
		}
	}
	return true
}

// AddCards appends the given card ids to the collection.
func (p *Player) AddCards(ids []string) {
	p.Collection = append(p.Collection, ids...)
}

// RemoveCards removes one copy per given id. The collection is untouched when
// any id is missing.
func (p *Player) RemoveCards(ids []string) error {
	if !p.HasAll(ids) {
		return ErrMissingCards
	}
	remove := countIDs(ids)
	kept := make([]string, 0, len(p.Collection))
	for _, id := range p.Collection {
		if remove[id] > 0 {
			remove[id]--
			continue
		}
		kept = append(kept, id)
	}
	p.Collection = kept
	return nil
}

func countIDs(ids []string) map[string]int {
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	return counts
}
