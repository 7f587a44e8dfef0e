package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/smqueue/internal/smqueue/message"
)

func entryAt(tag string, when time.Time) *message.Pending {
	p := message.NewFromRaw([]byte("x"), "127.0.0.1:5062")
	p.Tag = tag
	p.TagHash = message.TagHashOf(tag)
	p.NextActionTime = when
	return p
}

func TestInsertKeepsTimeOrder(t *testing.T) {
	q := New()
	now := time.Now()
	q.Insert(entryAt("b", now.Add(2*time.Second)))
	q.Insert(entryAt("a", now.Add(1*time.Second)))
	q.Insert(entryAt("c", now.Add(3*time.Second)))

	var order []string
	q.Lock()
	q.ForEachLocked(func(p *message.Pending) bool {
		order = append(order, p.Tag)
		return true
	})
	q.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestPopDueReturnsOnlyDueHead(t *testing.T) {
	q := New()
	now := time.Now()
	due := entryAt("due", now.Add(-time.Second))
	future := entryAt("future", now.Add(time.Hour))
	q.Insert(future)
	q.Insert(due)

	q.Lock()
	got := q.PopDueLocked(now)
	require.NotNil(t, got)
	assert.Equal(t, "due", got.Tag)
	assert.Nil(t, q.PopDueLocked(now))
	q.Unlock()
	assert.Equal(t, 1, q.Len())
}

func TestFindByTag(t *testing.T) {
	q := New()
	now := time.Now()
	q.Insert(entryAt("12--abc", now))
	q.Insert(entryAt("13--abc", now.Add(time.Second)))

	found := q.FindByTag("13--abc")
	require.NotNil(t, found)
	assert.Equal(t, "13--abc", found.Tag)
	assert.Nil(t, q.FindByTag("14--abc"))
}

func TestRemove(t *testing.T) {
	q := New()
	p := entryAt("gone", time.Now())
	q.Insert(p)
	assert.True(t, q.Remove(p))
	assert.False(t, q.Remove(p))
	assert.Equal(t, 0, q.Len())
}

func TestSnapshotReverse(t *testing.T) {
	q := New()
	now := time.Now()
	q.Insert(entryAt("a", now))
	q.Insert(entryAt("b", now.Add(time.Second)))

	snap := q.SnapshotReverse()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].Tag)
	assert.Equal(t, "a", snap[1].Tag)
}

func TestCountByState(t *testing.T) {
	q := New()
	now := time.Now()
	a := entryAt("a", now)
	a.State = message.RequestMsgDelivery
	b := entryAt("b", now)
	b.State = message.RequestMsgDelivery
	c := entryAt("c", now)
	c.State = message.InitialState
	q.Insert(a)
	q.Insert(b)
	q.Insert(c)

	counts := q.CountByState()
	assert.Equal(t, 2, counts[message.RequestMsgDelivery.String()])
	assert.Equal(t, 1, counts[message.InitialState.String()])
}
