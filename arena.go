// Package arena wires the match server together: the matchmaking queue, the
// session registry, the trade coordinator and the shared inventory, plus the
// scheduled sweeps that drive them. The Orchestrator is the only component
// that knows about all the others.
package arena

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/cardforge/arena/bus"
	"github.com/cardforge/arena/card"
	"github.com/cardforge/arena/inventory"
	"github.com/cardforge/arena/lock"
	"github.com/cardforge/arena/matchmaking"
	"github.com/cardforge/arena/peers"
	"github.com/cardforge/arena/player"
	"github.com/cardforge/arena/protocol"
	"github.com/cardforge/arena/session"
	"github.com/cardforge/arena/statsd"
	"github.com/cardforge/arena/trade"
)

// Command-boundary errors owned by the orchestrator itself.
var (
	ErrUnknownMatch      = eris.New("unknown match")
	ErrUnknownPack       = eris.New("unknown pack type")
	ErrInsufficientCoins = eris.New("insufficient coins")
	ErrAlreadyInMatch    = eris.New("player already in a match")
)

const defaultDeckName = "default"

// Orchestrator owns the per-instance registries and background sweeps and
// routes inbound player commands to the subsystems.
type Orchestrator struct {
	cfg      Config
	log      zerolog.Logger
	bus      *bus.Bus
	players  player.Store
	catalog  *card.Catalog
	inv      *inventory.Store
	cluster  lock.Cluster
	queue    *matchmaking.Queue
	matcher  *matchmaking.Matcher
	sessions *session.Registry
	trades   *trade.Coordinator

	done chan struct{}
	wg   sync.WaitGroup
}

// New builds an orchestrator and every subsystem it owns on top of one redis
// client. Registries live here, not in package globals; they are torn down
// with the orchestrator.
func New(cfg Config, log zerolog.Logger, client *redis.Client) *Orchestrator {
	log = log.With().Str("instance", cfg.InstanceID).Logger()
	eventBus := bus.New(client, cfg.Namespace, log)
	players := player.NewRedisStore(client, cfg.Namespace)
	catalog := card.DefaultCatalog()
	cluster := lock.NewRedisLease(client, cfg.Namespace, log)
	return &Orchestrator{
		cfg:      cfg,
		log:      log,
		bus:      eventBus,
		players:  players,
		catalog:  catalog,
		inv:      inventory.NewStore(client, catalog, cfg.Namespace, log),
		cluster:  cluster,
		queue:    matchmaking.NewQueue(),
		matcher: matchmaking.NewMatcher(
			peers.NewStaticDirectory(cfg.Peers()),
			peers.NewClient(2*time.Second),
			log,
		),
		sessions: session.NewRegistry(),
		trades:   trade.NewCoordinator(players, cluster, eventBus, log),
		done:     make(chan struct{}),
	}
}

// Start seeds shared state and launches the background sweeps.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.inv.EnsureSeeded(ctx); err != nil {
		return err
	}
	o.runSweep(ctx, "matchmaking", time.Duration(o.cfg.MatchSweepMillis)*time.Millisecond, o.matchmakingSweep)
	o.runSweep(ctx, "turn_timeout", time.Duration(o.cfg.TurnSweepMillis)*time.Millisecond, o.turnTimeoutSweep)
	o.runSweep(ctx, "resource_regen", time.Duration(o.cfg.RegenSweepMillis)*time.Millisecond, o.resourceRegenSweep)
	o.runSweep(ctx, "trade_expiry", time.Duration(o.cfg.TradeSweepMillis)*time.Millisecond, o.tradeExpirySweep)
	o.log.Info().Msg("orchestrator started")
	return nil
}

// Shutdown stops the sweeps and tears down local subscriptions.
func (o *Orchestrator) Shutdown() {
	close(o.done)
	o.wg.Wait()
	o.bus.Close()
	o.log.Info().Msg("orchestrator stopped")
}

// runSweep drives one periodic task. Each iteration recovers panics and
// logs failures so one bad session never halts the sweep for the rest.
func (o *Orchestrator) runSweep(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-o.done:
				return
			case <-ticker.C:
				start := time.Now()
				func() {
					defer func() {
						if r := recover(); r != nil {
							o.log.Error().Interface("panic", r).Str("sweep", name).Msg("sweep iteration panicked")
						}
					}()
					fn(ctx)
				}()
				statsd.EmitSweepStat(start, name)
			}
		}
	}()
}

// HandleCommand processes one inbound line for a player and returns the
// reply line. Session and trade notifications travel separately over the
// event bus.
func (o *Orchestrator) HandleCommand(ctx context.Context, playerID, line string) string {
	cmd, err := protocol.Parse(line)
	if err != nil {
		o.log.Debug().Err(err).Str("player", playerID).Msg("rejected malformed command")
		return protocol.Error("MALFORMED_COMMAND")
	}
	reply, err := o.dispatch(ctx, playerID, cmd)
	if err != nil {
		return protocol.Error(o.errorCode(err))
	}
	return reply
}

func (o *Orchestrator) dispatch(ctx context.Context, playerID string, cmd protocol.Command) (string, error) {
	switch cmd.Kind {
	case protocol.KindCharacterSetup:
		return o.handleCharacterSetup(ctx, playerID, cmd)
	case protocol.KindMatchmakingEnter:
		return o.handleMatchmakingEnter(ctx, playerID, cmd)
	case protocol.KindPlayCard:
		return o.handlePlayCard(ctx, playerID, cmd)
	case protocol.KindStoreBuy:
		return o.handleStoreBuy(ctx, playerID, cmd)
	case protocol.KindTradePropose:
		p, err := o.trades.Propose(ctx, playerID, cmd.TargetID, cmd.Offered, cmd.Requested)
		if err != nil {
			return "", err
		}
		return protocol.Success("TRADE_PROPOSED:" + p.ID), nil
	case protocol.KindTradeAccept:
		if err := o.trades.Accept(ctx, playerID, cmd.TradeID); err != nil {
			statsd.EmitTradeStat("failed")
			return "", err
		}
		statsd.EmitTradeStat("completed")
		return protocol.Success("TRADE_ACCEPTED:" + cmd.TradeID), nil
	case protocol.KindTradeReject:
		if err := o.trades.Reject(ctx, playerID, cmd.TradeID); err != nil {
			return "", err
		}
		return protocol.Success("TRADE_REJECTED:" + cmd.TradeID), nil
	}
	return "", eris.Wrapf(protocol.ErrMalformed, "unhandled command kind %q", cmd.Kind)
}

func (o *Orchestrator) handleCharacterSetup(ctx context.Context, playerID string, cmd protocol.Command) (string, error) {
	p, err := o.players.FindByID(ctx, playerID)
	switch {
	case errors.Is(err, player.ErrNotFound):
		p = player.New(playerID, cmd.Name, cmd.Race, cmd.Class)
		p.AddCards(o.catalog.StarterIDs())
		p.Decks[defaultDeckName] = o.catalog.StarterIDs()
	case err != nil:
		return "", err
	default:
		p.Name, p.Race, p.Class = cmd.Name, cmd.Race, cmd.Class
	}
	if err := o.players.Save(ctx, p); err != nil {
		return "", err
	}
	return protocol.Success("CHARACTER_READY:" + p.Name), nil
}

func (o *Orchestrator) handleMatchmakingEnter(ctx context.Context, playerID string, cmd protocol.Command) (string, error) {
	p, err := o.players.FindByID(ctx, playerID)
	if err != nil {
		return "", err
	}
	if _, busy := o.sessions.ByPlayer(playerID); busy {
		return "", eris.Wrapf(ErrAlreadyInMatch, "player %q", playerID)
	}
	o.queue.Enqueue(p, cmd.DeckID)
	return protocol.Success("QUEUED"), nil
}

func (o *Orchestrator) handlePlayCard(ctx context.Context, playerID string, cmd protocol.Command) (string, error) {
	s, ok := o.sessions.Get(cmd.MatchID)
	if !ok {
		return "", eris.Wrapf(ErrUnknownMatch, "id %q", cmd.MatchID)
	}
	if err := s.PlayCard(ctx, playerID, cmd.CardID); err != nil {
		return "", err
	}
	if s.Ended() {
		o.sessions.Remove(s.ID)
	}
	return protocol.Success("CARD_PLAYED:" + cmd.CardID), nil
}

// handleStoreBuy runs a purchase under the same cluster lock as trade
// execution: coins and collection changes must not interleave with any other
// inventory mutation in the fleet.
func (o *Orchestrator) handleStoreBuy(ctx context.Context, playerID string, cmd protocol.Command) (string, error) {
	pack, ok := inventory.PackByName(cmd.PackType)
	if !ok {
		return "", eris.Wrapf(ErrUnknownPack, "type %q", cmd.PackType)
	}
	token, acquired, err := o.cluster.Acquire(ctx, lock.InventoryKey)
	if err != nil {
		return "", err
	}
	if !acquired {
		return "", eris.Wrap(lock.ErrBusy, "store purchase")
	}
	defer func() {
		if err := o.cluster.Release(ctx, lock.InventoryKey, token); err != nil {
			o.log.Error().Err(err).Msg("inventory lock release failed")
		}
	}()

	p, err := o.players.FindByID(ctx, playerID)
	if err != nil {
		return "", err
	}
	if p.Coins < pack.Price {
		return "", eris.Wrapf(ErrInsufficientCoins, "have %d, need %d", p.Coins, pack.Price)
	}
	granted, err := o.inv.OpenPack(ctx, pack)
	if err != nil {
		return "", err
	}
	ids := make([]string, len(granted))
	for i, def := range granted {
		ids[i] = def.ID
	}
	p.Coins -= pack.Price
	p.AddCards(ids)
	if err := o.players.Update(ctx, p); err != nil {
		return "", err
	}
	return protocol.Success("PACK_OPENED:" + strings.Join(ids, ",")), nil
}

// Connect attaches a player's transport connection to the event bus.
func (o *Orchestrator) Connect(ctx context.Context, playerID string) (*bus.Subscription, error) {
	return o.bus.Subscribe(ctx, playerID)
}

// Disconnect handles a dropped player: leave the queue, abort any active
// session and notify the opponent. In-flight trades are left to fail their
// next validation instead of being eagerly cancelled.
func (o *Orchestrator) Disconnect(ctx context.Context, playerID string) {
	o.queue.Remove(playerID)
	if s, ok := o.sessions.ByPlayer(playerID); ok {
		s.AbortDisconnect(ctx, playerID)
		o.sessions.Remove(s.ID)
	}
}

// LockLocalPartner serves the remote matchmaking RPC: remove and hand over
// one unmatched local player, or report that none is available.
func (o *Orchestrator) LockLocalPartner() (*player.Player, bool) {
	entry, ok := o.queue.TakeOne()
	if !ok {
		return nil, false
	}
	o.log.Info().Str("player", entry.Player.ID).Msg("handed local player to a peer")
	return entry.Player, true
}

// matchmakingSweep forms as many local pairs as possible, then makes at most
// one cross-instance attempt for a leftover player.
func (o *Orchestrator) matchmakingSweep(ctx context.Context) {
	for {
		var a, b matchmaking.Entry
		var ok bool
		if o.cfg.MatchRatingDelta > 0 {
			a, b, ok = o.queue.TakePairWithin(o.cfg.MatchRatingDelta)
		} else {
			a, b, ok = o.queue.TakePair()
		}
		if !ok {
			break
		}
		if err := o.startSession(ctx, a, b, "local"); err != nil {
			o.log.Error().Err(err).Msg("failed to start local match; returning players to queue")
			o.queue.Return(a, b)
			break
		}
	}

	if o.queue.Len() == 0 {
		return
	}
	entry, ok := o.queue.TakeOne()
	if !ok {
		return
	}
	remote, found := o.matcher.FindRemotePartner(ctx)
	if !found {
		// Exhausted every peer; the player keeps their place in line.
		o.queue.Return(entry)
		return
	}
	if err := o.startSession(ctx, entry, matchmaking.Entry{Player: remote}, "remote"); err != nil {
		o.log.Error().Err(err).Msg("failed to start remote match; returning local player to queue")
		o.queue.Return(entry)
	}
}

func (o *Orchestrator) startSession(ctx context.Context, a, b matchmaking.Entry, kind string) error {
	s := session.New(
		uuid.NewString(),
		session.NewPlayerState(a.Player, o.resolveDeck(a)),
		session.NewPlayerState(b.Player, o.resolveDeck(b)),
		o.bus,
		session.Options{TurnDuration: time.Duration(o.cfg.TurnSeconds) * time.Second},
		o.log,
	)
	if err := o.sessions.Add(s); err != nil {
		return err
	}
	s.Start(ctx)
	statsd.EmitMatchStarted(kind)
	return nil
}

func (o *Orchestrator) resolveDeck(e matchmaking.Entry) []card.Card {
	var chosen []string
	if e.DeckID != "" {
		chosen = e.Player.Decks[e.DeckID]
	}
	return card.ResolveDeck(o.catalog, chosen, e.Player.Decks[defaultDeckName], e.Player.Collection)
}

func (o *Orchestrator) turnTimeoutSweep(ctx context.Context) {
	now := time.Now()
	o.sessions.ForEach(func(s *session.Session) {
		s.ForceEndTurn(ctx, now)
		if s.Ended() {
			o.sessions.Remove(s.ID)
		}
	})
}

func (o *Orchestrator) resourceRegenSweep(ctx context.Context) {
	o.sessions.ForEach(func(s *session.Session) {
		s.RegenerateResources(ctx)
	})
}

func (o *Orchestrator) tradeExpirySweep(ctx context.Context) {
	o.trades.ExpireSweep(ctx, time.Now())
}

// errorCode maps command failures onto the wire error vocabulary.
func (o *Orchestrator) errorCode(err error) string {
	switch {
	case errors.Is(err, protocol.ErrMalformed):
		return "MALFORMED_COMMAND"
	case errors.Is(err, player.ErrNotFound):
		return "UNKNOWN_PLAYER"
	case errors.Is(err, ErrUnknownMatch):
		return "UNKNOWN_MATCH"
	case errors.Is(err, ErrAlreadyInMatch):
		return "ALREADY_IN_MATCH"
	case errors.Is(err, session.ErrNotYourTurn):
		return "NOT_YOUR_TURN"
	case errors.Is(err, session.ErrCardNotInHand):
		return "CARD_NOT_IN_HAND"
	case errors.Is(err, session.ErrInsufficientResource):
		return "INSUFFICIENT_RESOURCE"
	case errors.Is(err, session.ErrMatchEnded), errors.Is(err, session.ErrNotStarted):
		return "MATCH_NOT_ACTIVE"
	case errors.Is(err, session.ErrNotInMatch):
		return "NOT_IN_MATCH"
	case errors.Is(err, trade.ErrMissingOffered):
		return "MISSING_OFFERED_CARDS"
	case errors.Is(err, trade.ErrMissingRequested):
		return "MISSING_REQUESTED_CARDS"
	case errors.Is(err, trade.ErrMissingCards):
		return "FAILED_MISSING_CARDS"
	case errors.Is(err, trade.ErrUnknownProposal):
		return "UNKNOWN_TRADE"
	case errors.Is(err, trade.ErrNotTarget), errors.Is(err, trade.ErrNotParticipant):
		return "NOT_TRADE_PARTY"
	case errors.Is(err, trade.ErrNotPending), errors.Is(err, trade.ErrNotAccepted):
		return "TRADE_NOT_PENDING"
	case errors.Is(err, lock.ErrBusy):
		return "SERVER_BUSY"
	case errors.Is(err, ErrUnknownPack):
		return "UNKNOWN_PACK"
	case errors.Is(err, ErrInsufficientCoins):
		return "INSUFFICIENT_COINS"
	case errors.Is(err, inventory.ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, inventory.ErrUnknownCard):
		return "UNKNOWN_CARD"
	}
	o.log.Error().Err(err).Msg("command failed with internal error")
	return "INTERNAL"
}
