// Package lifecycle is the order status state machine.
//
//	pending ──► processing ──► completed
//	   │             │              │
//	   └─────────────┴──────────────┴──► cancelled
//
// Orders start pending. Cancelled is final in every mode; moving an order to
// cancelled must go through the inventory cancel path so its stock is
// returned.
package lifecycle
