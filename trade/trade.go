// Package trade implements the trade-proposal lifecycle and its atomic,
// cluster-lock-guarded execution.
package trade

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/cardforge/arena/lock"
	"github.com/cardforge/arena/player"
	"github.com/cardforge/arena/protocol"
)

// Status is the proposal lifecycle state. Transitions only move forward,
// with one exception: a failed execution leaves the proposal ACCEPTED so it
// can be retried or expire.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var (
	ErrUnknownProposal  = eris.New("unknown trade proposal")
	ErrNotPending       = eris.New("proposal is not pending")
	ErrNotAccepted      = eris.New("proposal is not accepted")
	ErrNotTarget        = eris.New("caller is not the proposal target")
	ErrNotParticipant   = eris.New("caller is not part of this proposal")
	ErrMissingOffered   = eris.New("proposer does not hold every offered card")
	ErrMissingRequested = eris.New("target does not hold every requested card")
	ErrMissingCards     = eris.New("a participant no longer holds the promised cards")
)

// Publisher delivers notification lines to a player on any instance.
type Publisher interface {
	Publish(ctx context.Context, playerID, line string) error
}

// Proposal is one trade offer between two players.
type Proposal struct {
	ID         string
	ProposerID string
	TargetID   string
	Offered    []string
	Requested  []string
	Status     Status
	CreatedAt  time.Time
}

const defaultProposalTTL = 5 * time.Minute

// Coordinator owns the proposal table and runs executions under the
// cluster-wide inventory lock.
type Coordinator struct {
	players player.Store
	cluster lock.Cluster
	pub     Publisher
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger

	mu        sync.Mutex
	proposals map[string]*Proposal
}

func NewCoordinator(players player.Store, cluster lock.Cluster, pub Publisher, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		players:   players,
		cluster:   cluster,
		pub:       pub,
		ttl:       defaultProposalTTL,
		now:       time.Now,
		log:       log.With().Str("component", "trade").Logger(),
		proposals: map[string]*Proposal{},
	}
}

// Propose validates ownership on both sides and records a PENDING proposal.
// Request-side ownership is checked here too, surfaced to the proposer
// instead of silently failing later.
func (c *Coordinator) Propose(ctx context.Context, proposerID, targetID string, offered, requested []string) (*Proposal, error) {
	proposer, err := c.players.FindByID(ctx, proposerID)
	if err != nil {
		return nil, err
	}
	target, err := c.players.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !proposer.HasAll(offered) {
		return nil, eris.Wrapf(ErrMissingOffered, "proposer %q", proposerID)
	}
	if !target.HasAll(requested) {
		return nil, eris.Wrapf(ErrMissingRequested, "target %q", targetID)
	}

	p := &Proposal{
		ID:         uuid.NewString(),
		ProposerID: proposerID,
		TargetID:   targetID,
		Offered:    append([]string(nil), offered...),
		Requested:  append([]string(nil), requested...),
		Status:     StatusPending,
		CreatedAt:  c.now(),
	}
	c.mu.Lock()
	c.proposals[p.ID] = p
	c.mu.Unlock()

	c.publish(ctx, targetID, protocol.TradeProposal(p.ID, proposerID, p.Offered, p.Requested))
	c.log.Info().Str("trade", p.ID).Str("proposer", proposerID).Str("target", targetID).Msg("trade proposed")
	return p, nil
}

// Accept flips a PENDING proposal to ACCEPTED (target only), notifies the
// proposer, and immediately attempts execution.
func (c *Coordinator) Accept(ctx context.Context, callerID, tradeID string) error {
	c.mu.Lock()
	p, ok := c.proposals[tradeID]
	if !ok {
		c.mu.Unlock()
		return eris.Wrapf(ErrUnknownProposal, "id %q", tradeID)
	}
	if p.TargetID != callerID {
		c.mu.Unlock()
		return eris.Wrapf(ErrNotTarget, "caller %q", callerID)
	}
	if p.Status != StatusPending {
		c.mu.Unlock()
		return eris.Wrapf(ErrNotPending, "status %s", p.Status)
	}
	p.Status = StatusAccepted
	c.mu.Unlock()

	c.publish(ctx, p.ProposerID, protocol.Success("TRADE_ACCEPTED:"+p.ID))
	return c.Execute(ctx, tradeID)
}

// Reject terminates a PENDING proposal; either party may do it.
func (c *Coordinator) Reject(ctx context.Context, callerID, tradeID string) error {
	c.mu.Lock()
	p, ok := c.proposals[tradeID]
	if !ok {
		c.mu.Unlock()
		return eris.Wrapf(ErrUnknownProposal, "id %q", tradeID)
	}
	if callerID != p.ProposerID && callerID != p.TargetID {
		c.mu.Unlock()
		return eris.Wrapf(ErrNotParticipant, "caller %q", callerID)
	}
	if p.Status != StatusPending {
		c.mu.Unlock()
		return eris.Wrapf(ErrNotPending, "status %s", p.Status)
	}
	p.Status = StatusRejected
	other := p.ProposerID
	if callerID == p.ProposerID {
		other = p.TargetID
	}
	c.mu.Unlock()

	c.publish(ctx, other, protocol.Success("TRADE_REJECTED:"+p.ID))
	c.log.Info().Str("trade", p.ID).Str("by", callerID).Msg("trade rejected")
	return nil
}

// Execute performs the atomic exchange for an ACCEPTED proposal. The whole
// inventory-mutation domain is serialized under the cluster lock: both
// collections are re-validated and swapped without interleaving from any
// other trade or purchase in the fleet. On a validation failure both parties
// are notified and the proposal stays ACCEPTED for retry or expiry.
func (c *Coordinator) Execute(ctx context.Context, tradeID string) error {
	c.mu.Lock()
	p, ok := c.proposals[tradeID]
	if !ok {
		c.mu.Unlock()
		return eris.Wrapf(ErrUnknownProposal, "id %q", tradeID)
	}
	if p.Status != StatusAccepted {
		c.mu.Unlock()
		return eris.Wrapf(ErrNotAccepted, "status %s", p.Status)
	}
	c.mu.Unlock()

	token, ok, err := c.cluster.Acquire(ctx, lock.InventoryKey)
	if err != nil {
		return err
	}
	if !ok {
		return eris.Wrapf(lock.ErrBusy, "trade %q", tradeID)
	}
	defer func() {
		if err := c.cluster.Release(ctx, lock.InventoryKey, token); err != nil {
			c.log.Error().Err(err).Str("trade", tradeID).Msg("inventory lock release failed")
		}
	}()

	proposer, err := c.players.FindByID(ctx, p.ProposerID)
	if err != nil {
		return err
	}
	target, err := c.players.FindByID(ctx, p.TargetID)
	if err != nil {
		return err
	}

	// State may have changed between accept and execution.
	if !proposer.HasAll(p.Offered) || !target.HasAll(p.Requested) {
		c.notifyBoth(ctx, p, protocol.TradeComplete(protocol.TradeResultMissingCards))
		c.log.Warn().Str("trade", p.ID).Msg("execution failed: promised cards missing")
		return eris.Wrapf(ErrMissingCards, "trade %q", p.ID)
	}

	if err := proposer.RemoveCards(p.Offered); err != nil {
		return err
	}
	if err := target.RemoveCards(p.Requested); err != nil {
		return err
	}
	proposer.AddCards(p.Requested)
	target.AddCards(p.Offered)

	if err := c.players.Update(ctx, proposer); err != nil {
		return eris.Wrap(err, "failed to persist proposer")
	}
	if err := c.players.Update(ctx, target); err != nil {
		// The proposer write landed; restore it so a reported failure always
		// means both collections are unchanged.
		if restoreErr := c.restoreProposer(ctx, p); restoreErr != nil {
			c.log.Error().Err(restoreErr).Str("trade", p.ID).Msg("proposer restore failed after partial write")
		}
		return eris.Wrap(err, "failed to persist target")
	}

	c.mu.Lock()
	p.Status = StatusCompleted
	c.mu.Unlock()
	c.notifyBoth(ctx, p, protocol.TradeComplete(protocol.TradeResultSuccess))
	c.log.Info().Str("trade", p.ID).Msg("trade completed")
	return nil
}

func (c *Coordinator) restoreProposer(ctx context.Context, p *Proposal) error {
	proposer, err := c.players.FindByID(ctx, p.ProposerID)
	if err != nil {
		return err
	}
	if err := proposer.RemoveCards(p.Requested); err != nil {
		return err
	}
	proposer.AddCards(p.Offered)
	return c.players.Update(ctx, proposer)
}

// ExpireSweep cancels proposals older than the TTL that never completed, so
// the table cannot accumulate forever. Both parties are notified.
func (c *Coordinator) ExpireSweep(ctx context.Context, now time.Time) int {
	c.mu.Lock()
	var expired []*Proposal
	for id, p := range c.proposals {
		if p.Status == StatusPending || p.Status == StatusAccepted {
			if now.Sub(p.CreatedAt) > c.ttl {
				p.Status = StatusCancelled
				expired = append(expired, p)
			}
			continue
		}
		// Terminal proposals are dropped once past the TTL.
		if now.Sub(p.CreatedAt) > c.ttl {
			delete(c.proposals, id)
		}
	}
	c.mu.Unlock()

	for _, p := range expired {
		c.notifyBoth(ctx, p, protocol.TradeComplete(protocol.TradeResultCancelled))
		c.log.Info().Str("trade", p.ID).Msg("trade expired")
	}
	return len(expired)
}

// Get returns a copy of a proposal; used by tests and debug endpoints.
func (c *Coordinator) Get(tradeID string) (Proposal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.proposals[tradeID]
	if !ok {
		return Proposal{}, false
	}
	return *p, true
}

func (c *Coordinator) notifyBoth(ctx context.Context, p *Proposal, line string) {
	c.publish(ctx, p.ProposerID, line)
	c.publish(ctx, p.TargetID, line)
}

func (c *Coordinator) publish(ctx context.Context, playerID, line string) {
	if err := c.pub.Publish(ctx, playerID, line); err != nil {
		c.log.Warn().Err(err).Str("player", playerID).Msg("notification publish failed")
	}
}
