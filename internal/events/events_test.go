package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesTopicSubscribersOnly(t *testing.T) {
	bus := NewBus()

	var stats, lang []Event
	bus.Subscribe(UserStatsUpdated, func(e Event) { stats = append(stats, e) })
	bus.Subscribe(LanguageChanged, func(e Event) { lang = append(lang, e) })

	bus.Publish(Event{Topic: UserStatsUpdated, UserID: "u1"})

	assert.Len(t, stats, 1)
	assert.Equal(t, "u1", stats[0].UserID)
	assert.Empty(t, lang)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsubscribe := bus.Subscribe(ForceUserUpdate, func(Event) { calls++ })
	bus.Publish(Event{Topic: ForceUserUpdate})
	unsubscribe()
	unsubscribe() // second call is a no-op
	bus.Publish(Event{Topic: ForceUserUpdate})

	assert.Equal(t, 1, calls)
}

func TestSubscriberMayUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	var unsubscribe func()
	calls := 0
	unsubscribe = bus.Subscribe(Notice, func(Event) {
		calls++
		unsubscribe()
	})
	bus.Notify(LevelInfo, "hello")
	bus.Notify(LevelInfo, "hello")

	assert.Equal(t, 1, calls)
}

func TestNilBusDropsEvents(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Notify(LevelError, "x") })
}

func TestConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	got := 0
	bus.Subscribe(UserStatsUpdated, func(Event) {
		mu.Lock()
		got++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Event{Topic: UserStatsUpdated})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, got)
}

func TestZeroValueBus(t *testing.T) {
	var bus Bus

	got := 0
	bus.Subscribe(Notice, func(Event) { got++ })
	bus.Notify(LevelInfo, "toast.saved")

	assert.Equal(t, 1, got)
}
