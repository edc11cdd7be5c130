// Package matchmaking holds the per-instance waiting queue and the
// cross-instance partner search.
package matchmaking

import (
	"sync"
	"time"

	"github.com/cardforge/arena/player"
)

// Entry is one waiting player. It exists only while queued; it is removed the
// moment it is matched or locked for a remote match attempt.
type Entry struct {
	Player     *player.Player
	DeckID     string
	EnqueuedAt time.Time
}

// Queue is the local waiting list. One mutex serializes Enqueue, TakePair and
// TakeOne so two concurrent callers can never remove overlapping entries.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// Enqueue adds the player unless an entry for them already exists. Returns
// false when the call was a no-op; re-entering while queued must not create a
// duplicate.
func (q *Queue) Enqueue(p *player.Player, deckID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.Player.ID == p.ID {
			return false
		}
	}
	q.entries = append(q.entries, Entry{Player: p, DeckID: deckID, EnqueuedAt: q.now()})
	return true
}

// TakePair removes and returns the two oldest entries, or nothing at all.
func (q *Queue) TakePair() (Entry, Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) < 2 {
		return Entry{}, Entry{}, false
	}
	a, b := q.entries[0], q.entries[1]
	q.entries = append(q.entries[:0], q.entries[2:]...)
	return a, b, true
}

// TakePairWithin removes the oldest entry together with the first other entry
// whose rating is within delta of it. When no compatible partner exists the
// queue is left untouched.
func (q *Queue) TakePairWithin(delta int) (Entry, Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) < 2 {
		return Entry{}, Entry{}, false
	}
	head := q.entries[0]
	for i := 1; i < len(q.entries); i++ {
		other := q.entries[i]
		if abs(head.Player.Rating-other.Player.Rating) > delta {
			continue
		}
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		q.entries = q.entries[1:]
		return head, other, true
	}
	return Entry{}, Entry{}, false
}

// TakeOne removes and returns the oldest entry, locking it for a remote
// match attempt.
func (q *Queue) TakeOne() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

// Return puts entries back at the front of the queue, preserving their
// accumulated wait. Used when a match attempt falls through.
func (q *Queue) Return(entries ...Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(append([]Entry{}, entries...), q.entries...)
}

// Remove drops a player's entry, if any; disconnect cleanup.
func (q *Queue) Remove(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.Player.ID == playerID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports the number of waiting players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
