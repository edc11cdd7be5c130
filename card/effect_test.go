package card

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestResolveAttack(t *testing.T) {
	c := Card{ID: "a", Attack: 5, Effect: EffectAttack}
	out := Resolve(c, EffectContext{OpponentDefense: 2})
	assert.Equal(t, out.DamageToOpponent, 3)
	assert.Assert(t, out.ConsumesBonus)
}

func TestResolveAttackConsumesPendingBonus(t *testing.T) {
	c := Card{ID: "a", Attack: 3, Effect: EffectAttack}
	out := Resolve(c, EffectContext{PendingBonus: 2, OpponentDefense: 1})
	assert.Equal(t, out.DamageToOpponent, 4)
	assert.Assert(t, out.ConsumesBonus)
}

func TestResolveAttackNeverNegative(t *testing.T) {
	c := Card{ID: "a", Attack: 1, Effect: EffectAttack}
	out := Resolve(c, EffectContext{OpponentDefense: 9})
	assert.Equal(t, out.DamageToOpponent, 0)
}

func TestResolveDefenseHeals(t *testing.T) {
	c := Card{ID: "d", Defense: 4, Effect: EffectDefense}
	out := Resolve(c, EffectContext{})
	assert.Equal(t, out.HealCaster, 4)
	assert.Equal(t, out.DamageToOpponent, 0)
}

func TestResolveMagicDraws(t *testing.T) {
	out := Resolve(Card{ID: "m", Effect: EffectMagic}, EffectContext{})
	assert.Equal(t, out.DrawCards, 1)
}

func TestResolveAttributeAndEquipment(t *testing.T) {
	attr := Resolve(Card{Attack: 2, Defense: 1, Effect: EffectAttribute}, EffectContext{})
	assert.Equal(t, attr.AttackDelta, 2)
	assert.Equal(t, attr.DefenseDelta, 1)
	assert.Equal(t, attr.ManaDelta, 1)

	equip := Resolve(Card{Attack: 1, Defense: 3, Effect: EffectEquipment}, EffectContext{})
	assert.Equal(t, equip.AttackDelta, 1)
	assert.Equal(t, equip.DefenseDelta, 3)
	assert.Equal(t, equip.ManaDelta, 0)
}

func TestResolveScenarioRaisesBothPools(t *testing.T) {
	out := Resolve(Card{Effect: EffectScenario}, EffectContext{})
	assert.Equal(t, out.SharedManaDelta, 1)
}

func TestResolveComboBonus(t *testing.T) {
	c := Card{ID: "combo", Attack: 4, Effect: EffectCombo, ComboWith: "partner"}

	solo := Resolve(c, EffectContext{OpponentDefense: 1})
	assert.Equal(t, solo.DamageToOpponent, 3)

	chained := Resolve(c, EffectContext{OpponentDefense: 1, PlayedThisTurn: []string{"partner"}})
	assert.Equal(t, chained.DamageToOpponent, 3+comboDamageBonus)
}

func TestResolveCounterArmsBonus(t *testing.T) {
	out := Resolve(Card{Attack: 2, Effect: EffectCounter}, EffectContext{})
	assert.Equal(t, out.NextAttackBonus, 2)
	assert.Equal(t, out.DamageToOpponent, 0)
}

func TestResolveUnknownEffectIsNoop(t *testing.T) {
	out := Resolve(Card{Effect: EffectKind("haunt")}, EffectContext{})
	assert.DeepEqual(t, out, EffectOutcome{})
}
