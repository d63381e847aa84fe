package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishCoalescesWakeUps(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(Invalidation{PullRequestID: "PR_1", Scopes: []Scope{ScopeList}})
	bus.Publish(Invalidation{PullRequestID: "PR_2", Scopes: []Scope{ScopeList, ScopeDetail}})

	select {
	case <-sub.Ready():
	default:
		t.Fatal("subscription was not signalled")
	}
	select {
	case <-sub.Ready():
		t.Fatal("two publishes should wake the subscriber once")
	default:
	}

	got := sub.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "PR_1", got[0].PullRequestID)
	assert.True(t, got[1].Has(ScopeDetail))
	assert.False(t, got[0].Has(ScopeDetail))
	assert.Empty(t, sub.Drain())
}

func TestBus_FanOutAndClose(t *testing.T) {
	bus := NewBus()
	a, b := bus.Subscribe(), bus.Subscribe()
	bus.Publish(Invalidation{PullRequestID: "PR_1"})
	assert.Len(t, a.Drain(), 1)
	assert.Len(t, b.Drain(), 1)

	b.Close()
	bus.Publish(Invalidation{PullRequestID: "PR_2"})
	assert.Len(t, a.Drain(), 1)
	assert.Empty(t, b.Drain())
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Invalidation{PullRequestID: "PR"})
		}()
	}
	wg.Wait()
	assert.Len(t, sub.Drain(), 50)
}
