// Package queue holds the time-sorted list of in-flight messages and its
// save-file persistence.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/sebas/smqueue/internal/smqueue/message"
)

// Queue is the single shared mutable structure in the system: entries
// ordered ascending by NextActionTime, guarded by one mutex. Callers
// that need find-then-mutate atomicity use Lock/Unlock around the
// *Locked operations.
type Queue struct {
	mu      sync.Mutex
	entries []*message.Pending
}

func New() *Queue {
	return &Queue{}
}

func (q *Queue) Lock()   { q.mu.Lock() }
func (q *Queue) Unlock() { q.mu.Unlock() }

// InsertLocked places p in time order. Equal times keep insertion order.
func (q *Queue) InsertLocked(p *message.Pending) {
	i := sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].NextActionTime.After(p.NextActionTime)
	})
	q.entries = append(q.entries, nil)
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = p
}

// Insert places p in time order.
func (q *Queue) Insert(p *message.Pending) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.InsertLocked(p)
}

// PopDueLocked removes and returns the head if it is due, else nil.
func (q *Queue) PopDueLocked(now time.Time) *message.Pending {
	if len(q.entries) == 0 {
		return nil
	}
	head := q.entries[0]
	if head.NextActionTime.After(now) {
		return nil
	}
	q.entries = q.entries[1:]
	return head
}

// HeadTimeLocked returns the next-action time of the head entry.
func (q *Queue) HeadTimeLocked() (time.Time, bool) {
	if len(q.entries) == 0 {
		return time.Time{}, false
	}
	return q.entries[0].NextActionTime, true
}

// FindByTagLocked scans for the entry with the given tag. The one-byte
// hash short-circuits most of the string compares.
func (q *Queue) FindByTagLocked(tag string, hash byte) *message.Pending {
	for _, e := range q.entries {
		if e.TagHash == hash && e.Tag == tag {
			return e
		}
	}
	return nil
}

// FindByTag scans under the lock.
func (q *Queue) FindByTag(tag string) *message.Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.FindByTagLocked(tag, message.TagHashOf(tag))
}

// RemoveLocked unlinks p from the queue. Returns false if p is absent.
func (q *Queue) RemoveLocked(p *message.Pending) bool {
	for i, e := range q.entries {
		if e == p {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Remove unlinks p under the lock.
func (q *Queue) Remove(p *message.Pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.RemoveLocked(p)
}

// SnapshotReverse returns the entries in descending time order, so that
// replaying the snapshot with ordered inserts rebuilds the queue cheaply.
func (q *Queue) SnapshotReverse() []*message.Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*message.Pending, len(q.entries))
	for i, e := range q.entries {
		out[len(q.entries)-1-i] = e
	}
	return out
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// CountByState tallies entries per state, for the ops API.
func (q *Queue) CountByState() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range q.entries {
		counts[e.State.String()]++
	}
	return counts
}

// ForEachLocked visits entries in time order until fn returns false.
func (q *Queue) ForEachLocked(fn func(p *message.Pending) bool) {
	for _, e := range q.entries {
		if !fn(e) {
			return
		}
	}
}
