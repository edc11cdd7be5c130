// Package peers implements the peer directory and the HTTP client side of
// the remote matchmaking RPC.
package peers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/cardforge/arena/player"
)

// LockPartnerPath is the route every instance serves for the partner-lock
// RPC. 200 carries a player record; 204 means no unmatched player was
// available.
const LockPartnerPath = "/peer/matchmaking/lock"

// StaticDirectory serves a fixed peer list from configuration.
type StaticDirectory struct {
	addrs []string
}

func NewStaticDirectory(addrs []string) *StaticDirectory {
	return &StaticDirectory{addrs: addrs}
}

func (d *StaticDirectory) Addresses() []string {
	out := make([]string, len(d.addrs))
	copy(out, d.addrs)
	return out
}

// Client calls peer instances. The HTTP client carries its own bounded
// timeout so a dead peer costs at most one timeout, not a hung sweep.
type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// LockPartner asks one peer to remove and hand over a queued player.
func (c *Client) LockPartner(ctx context.Context, addr string) (*player.Player, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+LockPartnerPath, bytes.NewReader(nil))
	if err != nil {
		return nil, eris.Wrap(err, "failed to build partner lock request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "partner lock request failed")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		bz, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "failed to read partner lock response")
		}
		var p player.Player
		if err := json.Unmarshal(bz, &p); err != nil {
			return nil, eris.Wrap(err, "failed to decode partner lock response")
		}
		return &p, nil
	default:
		return nil, eris.Errorf("peer returned status %d", resp.StatusCode)
	}
}
