/*
Package events provides an in-memory event broker for storefront domain events.

The manager publishes an event after every committed mutation: registrations,
logins, profile and role changes, product changes, new orders, status changes
and cancellations. Subscribers receive events asynchronously; nothing in the
request path waits for them.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  Publisher → Event Channel (buffer: 100)                  │
	│       ↓                                                    │
	│  Broadcast Loop                                            │
	│       ↓                                                    │
	│  Subscriber Channels (buffer: 50 each)                    │
	│                                                            │
	│  Event Types:                                              │
	│    user.registered, user.updated, user.deleted,           │
	│    user.deactivated, user.activated,                      │
	│    user.login, user.logout                                │
	│    product.created, product.updated, product.deleted      │
	│    order.created, order.status_changed, order.cancelled   │
	└────────────────────────────────────────────────────────────┘

Publish never blocks. A full event queue or a full subscriber buffer drops
the delivery and increments Dropped; events are notifications, and the store
stays the source of truth.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for event := range sub {
		fmt.Println(event.Type, event.Subject)
	}

LogEvents attaches a subscriber that writes every event to the structured log,
which is what `storefront serve` does.
*/
package events
