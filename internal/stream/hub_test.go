package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestHub_PublishFansOut(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	idA, a := hub.Subscribe()
	_, b := hub.Subscribe()
	assert.Equal(t, 2, hub.Count())

	hub.Listen(portfolio.Change{Version: 3, PortfolioIDs: []string{"p1"}})

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, EventPortfolioChanged, ev.Type)
		assert.Equal(t, uint64(3), ev.Version)
		assert.Equal(t, []string{"p1"}, ev.PortfolioIDs)
		assert.False(t, ev.Timestamp.IsZero())
	}

	hub.Unsubscribe(idA)
	hub.Unsubscribe(idA)
	_, open := <-a
	assert.False(t, open, "unsubscribe closes the channel")
	assert.Equal(t, 1, hub.Count())
}

func TestHub_DropsWhenClientIsSlow(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	_, ch := hub.Subscribe()

	for i := 0; i < clientBuffer+10; i++ {
		hub.Publish(Event{Type: EventQuotesRefreshed, Version: uint64(i)})
	}

	assert.Len(t, ch, clientBuffer)
	assert.Equal(t, uint64(10), hub.Dropped())
}

func TestHub_ConcurrentPublishCountsDrops(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	_, ch := hub.Subscribe()

	const publishers, perPublisher = 8, 500
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				hub.Publish(Event{Type: EventQuotesRefreshed})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ch, clientBuffer)
	assert.Equal(t, uint64(publishers*perPublisher-clientBuffer), hub.Dropped())
}

func TestHub_CloseDisconnectsEveryone(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	id, ch := hub.Subscribe()
	_, other := hub.Subscribe()

	hub.Close()

	_, open := <-ch
	assert.False(t, open)
	_, open = <-other
	assert.False(t, open)
	assert.Equal(t, 0, hub.Count())

	hub.Unsubscribe(id)
	hub.Publish(Event{Type: EventQuotesRefreshed})
}

func TestHandler_StreamsStoreChanges(t *testing.T) {
	store := portfolio.NewStore(zerolog.Nop())
	registry := portfolio.NewRegistry(store, zerolog.Nop())
	hub := NewHub(zerolog.Nop())
	store.Subscribe(hub.Listen)

	ts := httptest.NewServer(NewHandler(hub, store, zerolog.Nop()))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	var ready Event
	require.NoError(t, wsjson.Read(ctx, conn, &ready))
	assert.Equal(t, EventReady, ready.Type)
	assert.Equal(t, uint64(0), ready.Version)
	require.Equal(t, 1, hub.Count())

	p, err := registry.CreatePortfolio("Main")
	require.NoError(t, err)

	var changed Event
	require.NoError(t, wsjson.Read(ctx, conn, &changed))
	assert.Equal(t, EventPortfolioChanged, changed.Type)
	assert.Equal(t, store.Version(), changed.Version)
	assert.Contains(t, changed.PortfolioIDs, p.ID)

	conn.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
