package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/storefront/pkg/log"
	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventUserRegistered  EventType = "user.registered"
	EventUserUpdated     EventType = "user.updated"
	EventUserDeleted     EventType = "user.deleted"
	EventUserDeactivated EventType = "user.deactivated"
	EventUserActivated   EventType = "user.activated"
	EventUserLogin       EventType = "user.login"
	EventUserLogout      EventType = "user.logout"

	EventProductCreated EventType = "product.created"
	EventProductUpdated EventType = "product.updated"
	EventProductDeleted EventType = "product.deleted"

	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderCancelled     EventType = "order.cancelled"
)

// Event represents a storefront domain event
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Actor     string
	Subject   string
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
	dropped     atomic.Uint64
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker. It is safe to call more than once.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish queues an event for all subscribers. It never blocks the caller:
// when the queue is full the event is dropped and counted.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-b.stopCh:
		return
	default:
	}

	select {
	case b.eventCh <- event:
	default:
		b.dropped.Add(1)
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
			b.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped because a buffer was full
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// LogEvents subscribes to the broker and writes every event to the log until
// the broker stops or the subscription is closed
func LogEvents(b *Broker) Subscriber {
	sub := b.Subscribe()
	logger := log.WithComponent("events")

	go func() {
		for {
			select {
			case event, ok := <-sub:
				if !ok {
					return
				}
				entry := logger.Info().
					Str("event_id", event.ID).
					Str("type", string(event.Type)).
					Str("actor", event.Actor).
					Str("subject", event.Subject)
				for k, v := range event.Metadata {
					entry = entry.Str(k, v)
				}
				entry.Msg(event.Message)
			case <-b.stopCh:
				return
			}
		}
	}()
	return sub
}
