// Package session implements the per-match turn/resource/combat state
// machine. A session is the unit of mutual exclusion: one mutex serializes
// every mutating operation on it, and different sessions never contend.
package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/cardforge/arena/card"
	"github.com/cardforge/arena/player"
	"github.com/cardforge/arena/protocol"
)

const (
	// OpeningHandSize cards are dealt to each player on start.
	OpeningHandSize = 5
	// StartingResource seeds each player's pool.
	StartingResource = 3
	// ResourceCap bounds regeneration.
	ResourceCap = 10
	// DefaultTurnDuration is the window before a forced action fires.
	DefaultTurnDuration = 20 * time.Second
)

// Protocol errors; reported to the offending caller only, session state
// unchanged.
var (
	ErrNotStarted           = eris.New("match has not started")
	ErrMatchEnded           = eris.New("match already ended")
	ErrNotInMatch           = eris.New("player is not in this match")
	ErrNotYourTurn          = eris.New("not your turn")
	ErrCardNotInHand        = eris.New("card not in hand")
	ErrInsufficientResource = eris.New("insufficient resource")
)

// Publisher delivers notification lines to a player on any instance.
type Publisher interface {
	Publish(ctx context.Context, playerID, line string) error
}

// PlayerState is one participant's in-match state, seeded from the persisted
// player record when the session is created.
type PlayerState struct {
	ID          string
	Name        string
	Health      int
	Resource    int
	BaseAttack  int
	BaseDefense int
	BaseMana    int
	Deck        []card.Card
	Hand        []card.Card

	pendingBonus int
}

// NewPlayerState seeds in-match state from a persisted record and a resolved
// deck.
func NewPlayerState(p *player.Player, deck []card.Card) *PlayerState {
	return &PlayerState{
		ID:          p.ID,
		Name:        p.Name,
		Health:      p.Health,
		BaseAttack:  p.BaseAttack,
		BaseDefense: p.BaseDefense,
		BaseMana:    p.BaseMana,
		Deck:        append([]card.Card(nil), deck...),
	}
}

// Options tune a session; zero values take defaults. Tests inject Rand and
// Now for determinism.
type Options struct {
	TurnDuration time.Duration
	Rand         *rand.Rand
	Now          func() time.Time
}

// Session is one active 1v1 match.
type Session struct {
	ID string

	mu             sync.Mutex
	players        [2]*PlayerState
	turn           int
	deadline       time.Time
	started        bool
	ended          bool
	playedThisTurn []string

	turnDuration time.Duration
	rng          *rand.Rand
	now          func() time.Time
	pub          Publisher
	log          zerolog.Logger
}

func New(id string, a, b *PlayerState, pub Publisher, opts Options, log zerolog.Logger) *Session {
	if opts.TurnDuration <= 0 {
		opts.TurnDuration = DefaultTurnDuration
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		ID:           id,
		players:      [2]*PlayerState{a, b},
		turnDuration: opts.TurnDuration,
		rng:          opts.Rand,
		now:          opts.Now,
		pub:          pub,
		log:          log.With().Str("component", "session").Str("match", id).Logger(),
	}
}

// Start shuffles both decks, deals the opening hands, seeds the resource
// pools, picks a random first turn owner and opens the first turn window.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	for _, ps := range s.players {
		s.rng.Shuffle(len(ps.Deck), func(i, j int) { ps.Deck[i], ps.Deck[j] = ps.Deck[j], ps.Deck[i] })
		for i := 0; i < OpeningHandSize && len(ps.Deck) > 0; i++ {
			ps.Hand = append(ps.Hand, ps.Deck[0])
			ps.Deck = ps.Deck[1:]
		}
		ps.Resource = StartingResource
	}
	s.turn = s.rng.Intn(2)
	s.started = true
	s.deadline = s.now().Add(s.turnDuration)

	s.publish(ctx, s.players[0].ID, protocol.GameStart(s.ID, s.players[1].Name))
	s.publish(ctx, s.players[1].ID, protocol.GameStart(s.ID, s.players[0].Name))
	s.broadcast(ctx, protocol.NewTurn(s.players[s.turn].ID, s.deadline))
	s.log.Info().Str("first_turn", s.players[s.turn].ID).Msg("match started")
}

// PlayCard validates and resolves one card play by the given player.
func (s *Session) PlayCard(ctx context.Context, playerID, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	if s.ended {
		return ErrMatchEnded
	}
	idx := s.indexOf(playerID)
	if idx < 0 {
		return eris.Wrapf(ErrNotInMatch, "player %q", playerID)
	}
	if idx != s.turn {
		return ErrNotYourTurn
	}
	return s.playCardLocked(ctx, idx, cardID)
}

// playCardLocked runs the shared play path. The forced-action path enters
// here directly, bypassing only the turn-ownership check.
func (s *Session) playCardLocked(ctx context.Context, idx int, cardID string) error {
	caster, opponent := s.players[idx], s.players[1-idx]

	hi := handIndex(caster.Hand, cardID)
	if hi < 0 {
		return eris.Wrapf(ErrCardNotInHand, "card %q", cardID)
	}
	def := caster.Hand[hi]
	if def.Cost > caster.Resource {
		return eris.Wrapf(ErrInsufficientResource, "card %q costs %d, pool is %d", cardID, def.Cost, caster.Resource)
	}

	caster.Resource -= def.Cost
	caster.Hand = append(caster.Hand[:hi], caster.Hand[hi+1:]...)

	outcome := card.Resolve(def, card.EffectContext{
		PendingBonus:    caster.pendingBonus,
		OpponentDefense: opponent.BaseDefense,
		PlayedThisTurn:  s.playedThisTurn,
	})
	s.applyOutcome(caster, opponent, outcome)
	s.playedThisTurn = append(s.playedThisTurn, def.ID)

	s.broadcast(ctx,
		protocol.Health(caster.ID, caster.Health),
		protocol.Health(opponent.ID, opponent.Health),
		protocol.Resource(s.players[0].Resource, s.players[1].Resource),
	)
	s.log.Debug().Str("player", caster.ID).Str("card", def.ID).
		Int("damage", outcome.DamageToOpponent).Msg("card resolved")

	if opponent.Health <= 0 {
		s.endLocked(ctx, idx)
		return nil
	}
	s.switchTurnLocked(ctx)
	return nil
}

func (s *Session) applyOutcome(caster, opponent *PlayerState, out card.EffectOutcome) {
	if out.ConsumesBonus {
		caster.pendingBonus = 0
	}
	if out.NextAttackBonus > 0 {
		caster.pendingBonus += out.NextAttackBonus
	}
	opponent.Health -= out.DamageToOpponent
	caster.Health += out.HealCaster
	for i := 0; i < out.DrawCards && len(caster.Deck) > 0; i++ {
		caster.Hand = append(caster.Hand, caster.Deck[0])
		caster.Deck = caster.Deck[1:]
	}
	caster.BaseAttack += out.AttackDelta
	caster.BaseDefense += out.DefenseDelta
	caster.BaseMana += out.ManaDelta
	if out.SharedManaDelta != 0 {
		caster.BaseMana += out.SharedManaDelta
		opponent.BaseMana += out.SharedManaDelta
	}
}

// ForceEndTurn fires the timeout-driven forced action: when the turn window
// has expired, auto-play the owner's cheapest affordable card, or switch the
// turn with no effect when nothing is affordable. Returns true when the
// deadline had expired and the turn advanced (or the match ended).
func (s *Session) ForceEndTurn(ctx context.Context, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.ended || now.Before(s.deadline) {
		return false
	}
	owner := s.players[s.turn]
	if id, ok := cheapestAffordable(owner.Hand, owner.Resource); ok {
		s.log.Info().Str("player", owner.ID).Str("card", id).Msg("turn expired; forcing cheapest play")
		if err := s.playCardLocked(ctx, s.turn, id); err != nil {
			// The pick came from the same locked state, so this is
			// unreachable in practice; switch the turn anyway.
			s.log.Error().Err(err).Msg("forced play failed; switching turn")
			s.switchTurnLocked(ctx)
		}
		return true
	}
	s.log.Info().Str("player", owner.ID).Msg("turn expired with no affordable card; switching turn")
	s.switchTurnLocked(ctx)
	return true
}

// RegenerateResources adds one resource to each pool up to the cap,
// broadcasting only when something changed.
func (s *Session) RegenerateResources(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.ended {
		return
	}
	changed := false
	for _, ps := range s.players {
		if ps.Resource < ResourceCap {
			ps.Resource++
			changed = true
		}
	}
	if changed {
		s.broadcast(ctx, protocol.Resource(s.players[0].Resource, s.players[1].Resource))
	}
}

// AbortDisconnect ends the match because a participant dropped, notifying
// the remaining player.
func (s *Session) AbortDisconnect(ctx context.Context, leaverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	idx := s.indexOf(leaverID)
	if idx < 0 {
		return
	}
	s.ended = true
	s.publish(ctx, s.players[1-idx].ID, protocol.GameOver(protocol.OutcomeOpponentDisconnect))
	s.log.Info().Str("leaver", leaverID).Msg("match aborted on disconnect")
}

func (s *Session) switchTurnLocked(ctx context.Context) {
	s.turn = 1 - s.turn
	s.deadline = s.now().Add(s.turnDuration)
	s.playedThisTurn = nil
	s.players[0].pendingBonus = 0
	s.players[1].pendingBonus = 0
	s.broadcast(ctx, protocol.NewTurn(s.players[s.turn].ID, s.deadline))
}

func (s *Session) endLocked(ctx context.Context, winnerIdx int) {
	s.ended = true
	s.publish(ctx, s.players[winnerIdx].ID, protocol.GameOver(protocol.OutcomeVictory))
	s.publish(ctx, s.players[1-winnerIdx].ID, protocol.GameOver(protocol.OutcomeDefeat))
	s.log.Info().Str("winner", s.players[winnerIdx].ID).Msg("match ended")
}

func (s *Session) broadcast(ctx context.Context, lines ...string) {
	for _, ps := range s.players {
		for _, line := range lines {
			s.publish(ctx, ps.ID, line)
		}
	}
}

func (s *Session) publish(ctx context.Context, playerID, line string) {
	if err := s.pub.Publish(ctx, playerID, line); err != nil {
		s.log.Warn().Err(err).Str("player", playerID).Msg("notification publish failed")
	}
}

func (s *Session) indexOf(playerID string) int {
	for i, ps := range s.players {
		if ps.ID == playerID {
			return i
		}
	}
	return -1
}

// Ended reports whether the session reached a terminal state.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// PlayerIDs returns both participants.
func (s *Session) PlayerIDs() [2]string {
	return [2]string{s.players[0].ID, s.players[1].ID}
}

// TurnOwner returns the id of the current turn owner.
func (s *Session) TurnOwner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[s.turn].ID
}

// Snapshot returns a read-only copy of one participant's state for tests and
// debugging endpoints.
func (s *Session) Snapshot(playerID string) (PlayerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(playerID)
	if idx < 0 {
		return PlayerState{}, false
	}
	ps := *s.players[idx]
	ps.Deck = append([]card.Card(nil), s.players[idx].Deck...)
	ps.Hand = append([]card.Card(nil), s.players[idx].Hand...)
	return ps, true
}

func handIndex(hand []card.Card, cardID string) int {
	for i, c := range hand {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

func cheapestAffordable(hand []card.Card, pool int) (string, bool) {
	best := -1
	for i, c := range hand {
		if c.Cost > pool {
			continue
		}
		if best < 0 || c.Cost < hand[best].Cost {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return hand[best].ID, true
}
