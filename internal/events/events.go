// Package events is a small in-process publish/subscribe bus. Components that
// do not know about each other (session store, review form, language
// switcher, stats widgets) communicate through it instead of sharing state.
package events

import (
	"sync"
)

// Topic names an event stream.
type Topic string

const (
	// UserStatsUpdated fires after the user's review count may have changed.
	UserStatsUpdated Topic = "userStatsUpdated"
	// ForceUserUpdate fires after the session user was refreshed.
	ForceUserUpdate Topic = "forceUserUpdate"
	// LanguageChanged fires after the UI language changed.
	LanguageChanged Topic = "languageChanged"
	// Notice carries a user-facing toast.
	Notice Topic = "notice"
)

// Level is the severity of a Notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Event is one published message. Only the fields relevant to the topic are
// set: UserID for user topics, Language for LanguageChanged, Level and
// MessageKey (an i18n key) for Notice.
type Event struct {
	Topic      Topic
	UserID     string
	Language   string
	Level      Level
	MessageKey string
}

type subscription struct {
	id int
	fn func(Event)
}

// Bus delivers events synchronously to the subscribers of a topic, in
// subscription order. It is safe for concurrent use. The zero value is ready
// to use and a nil *Bus drops events.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Topic][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers fn for topic and returns a func that removes it.
func (b *Bus) Subscribe(topic Topic, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[Topic][]subscription)
	}
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic Topic, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to the current subscribers of e.Topic. Subscribers are
// called without the lock held, so they may publish or unsubscribe.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[e.Topic]))
	copy(subs, b.subs[e.Topic])
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(e)
	}
}

// Notify publishes a Notice.
func (b *Bus) Notify(level Level, messageKey string) {
	b.Publish(Event{Topic: Notice, Level: level, MessageKey: messageKey})
}
