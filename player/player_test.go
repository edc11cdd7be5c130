package player

import (
	"testing"

	"github.com/rotisserie/eris"
	"gotest.tools/v3/assert"
)

func TestNewAppliesRaceAndClassShifts(t *testing.T) {
	p := New("p1", "Thrag", "orc", "warrior")
	assert.Equal(t, p.BaseAttack, startingAttack+2)
	assert.Equal(t, p.BaseDefense, startingDefense)
	assert.Equal(t, p.BaseMana, startingMana)
	assert.Equal(t, p.Health, startingHealth)
	assert.Equal(t, p.Coins, int64(startingCoins))
	assert.Equal(t, p.Rating, startingRating)
}

func TestNewUnknownLabelsGetBaseline(t *testing.T) {
	p := New("p1", "X", "gnome", "bard")
	assert.Equal(t, p.BaseAttack, startingAttack)
	assert.Equal(t, p.BaseDefense, startingDefense)
	assert.Equal(t, p.BaseMana, startingMana)
}

func TestHasAllRespectsMultiplicity(t *testing.T) {
	p := New("p1", "X", "", "")
	p.AddCards([]string{"a", "a", "b"})

	assert.Assert(t, p.HasAll([]string{"a", "b"}))
	assert.Assert(t, p.HasAll([]string{"a", "a"}))
	assert.Assert(t, !p.HasAll([]string{"a", "a", "a"}))
	assert.Assert(t, !p.HasAll([]string{"c"}))
}

func TestRemoveCardsTakesOneCopyPerID(t *testing.T) {
	p := New("p1", "X", "", "")
	p.AddCards([]string{"a", "a", "b"})

	assert.NilError(t, p.RemoveCards([]string{"a"}))
	assert.DeepEqual(t, p.Collection, []string{"a", "b"})
}

func TestRemoveCardsIsAllOrNothing(t *testing.T) {
	p := New("p1", "X", "", "")
	p.AddCards([]string{"a", "b"})

	err := p.RemoveCards([]string{"a", "c"})
	assert.Assert(t, eris.Is(eris.Cause(err), ErrMissingCards))
	assert.DeepEqual(t, p.Collection, []string{"a", "b"})
}
