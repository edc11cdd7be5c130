package card

// comboDamageBonus is the extra damage a combo card deals when its named
// partner was already played this turn.
const comboDamageBonus = 4

// EffectContext carries the slice of session state an effect is allowed to
// read. Keeping it a plain value makes effect resolution testable without a
// running session.
type EffectContext struct {
	// PendingBonus is the caster's next-attack scratch value, set earlier in
	// the turn by a counter card.
	PendingBonus int
	// OpponentDefense is the target's current base defense.
	OpponentDefense int
	// PlayedThisTurn lists the card ids already resolved this turn.
	PlayedThisTurn []string
}

// EffectOutcome is the full set of state changes a single card play can
// request. The session applies it under its own lock.
type EffectOutcome struct {
	DamageToOpponent int
	HealCaster       int
	DrawCards        int
	AttackDelta      int
	DefenseDelta     int
	ManaDelta        int
	// SharedManaDelta raises both players' base mana (scenario cards).
	SharedManaDelta int
	// NextAttackBonus arms the caster's pending-bonus scratch value.
	NextAttackBonus int
	// ConsumesBonus clears the caster's pending bonus after this play.
	ConsumesBonus bool
}

// Resolve dispatches on the card's effect kind and returns the resulting
// state changes. Unknown kinds resolve to a no-op rather than an error so a
// stale definition can never wedge a session.
func Resolve(c Card, ctx EffectContext) EffectOutcome {
	switch c.Effect {
	case EffectAttack:
		return EffectOutcome{
			DamageToOpponent: clampDamage(c.Attack + ctx.PendingBonus - ctx.OpponentDefense),
			ConsumesBonus:    true,
		}
	case EffectDefense:
		return EffectOutcome{HealCaster: c.Defense}
	case EffectMagic:
		return EffectOutcome{DrawCards: 1}
	case EffectAttribute:
		return EffectOutcome{AttackDelta: c.Attack, DefenseDelta: c.Defense, ManaDelta: 1}
	case EffectEquipment:
		return EffectOutcome{AttackDelta: c.Attack, DefenseDelta: c.Defense}
	case EffectScenario:
		return EffectOutcome{SharedManaDelta: 1}
	case EffectCombo:
		dmg := c.Attack - ctx.OpponentDefense
		if containsID(ctx.PlayedThisTurn, c.ComboWith) {
			dmg += comboDamageBonus
		}
		return EffectOutcome{DamageToOpponent: clampDamage(dmg)}
	case EffectCounter:
		// Marker only: arms the next qualifying attack played this turn.
		return EffectOutcome{NextAttackBonus: c.Attack}
	}
	return EffectOutcome{}
}

func clampDamage(dmg int) int {
	if dmg < 0 {
		return 0
	}
	return dmg
}

func containsID(ids []string, id string) bool {
	if id == "" {
		return false
	}
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
