package matchmaking

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cardforge/arena/player"
)

// Directory lists the other known instances of the fleet.
type Directory interface {
	Addresses() []string
}

// PartnerLocker is the remote matchmaking RPC: ask one instance to lock and
// hand over an unmatched player. A nil player with nil error means "no
// partner there".
type PartnerLocker interface {
	LockPartner(ctx context.Context, addr string) (*player.Player, error)
}

const defaultPeerTimeout = 2 * time.Second

// Matcher runs the cross-instance half of the protocol. It is best effort by
// design: peer failures are logged and treated as empty answers, never
// aborting the scan of the remaining peers.
type Matcher struct {
	dir     Directory
	rpc     PartnerLocker
	timeout time.Duration
	log     zerolog.Logger
}

func NewMatcher(dir Directory, rpc PartnerLocker, log zerolog.Logger) *Matcher {
	return &Matcher{
		dir:     dir,
		rpc:     rpc,
		timeout: defaultPeerTimeout,
		log:     log.With().Str("component", "matchmaking").Logger(),
	}
}

// FindRemotePartner queries every known peer in turn until one hands over a
// partner or all are exhausted.
func (m *Matcher) FindRemotePartner(ctx context.Context) (*player.Player, bool) {
	for _, addr := range m.dir.Addresses() {
		peerCtx, cancel := context.WithTimeout(ctx, m.timeout)
		remote, err := m.rpc.LockPartner(peerCtx, addr)
		cancel()
		if err != nil {
			m.log.Warn().Err(err).Str("peer", addr).Msg("peer partner lock failed; trying next peer")
			continue
		}
		if remote == nil {
			continue
		}
		m.log.Info().Str("peer", addr).Str("partner", remote.ID).Msg("locked remote partner")
		return remote, true
	}
	return nil, false
}
