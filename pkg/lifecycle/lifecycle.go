package lifecycle

import (
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/types"
)

// Initial is the status of every new order
const Initial = types.OrderStatusPending

// forward lists the transitions allowed in strict mode
var forward = map[types.OrderStatus][]types.OrderStatus{
	types.OrderStatusPending:    {types.OrderStatusProcessing, types.OrderStatusCancelled},
	types.OrderStatusProcessing: {types.OrderStatusCompleted, types.OrderStatusCancelled},
	types.OrderStatusCompleted:  {types.OrderStatusCancelled},
}

// Machine validates order status transitions.
//
// In the default permissive mode any change among pending, processing and
// completed is accepted. Strict mode only accepts the forward path
// pending -> processing -> completed. In both modes cancelled is final.
type Machine struct {
	Strict bool
}

// Terminal reports whether no further regular transition leaves s
func Terminal(s types.OrderStatus) bool {
	return s == types.OrderStatusCompleted || s == types.OrderStatusCancelled
}

// CanCancel reports whether an order in status s may still be cancelled
func CanCancel(s types.OrderStatus) bool {
	return s != types.OrderStatusCancelled
}

// Validate checks the transition from -> to
func (m Machine) Validate(from, to types.OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("unknown order status %q: %w", to, errdefs.ErrInvalidArgument)
	}
	if from == types.OrderStatusCancelled {
		return fmt.Errorf("order is cancelled and cannot change status: %w", errdefs.ErrInvalidArgument)
	}
	if !m.Strict {
		return nil
	}
	for _, next := range forward[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("transition %s -> %s is not allowed: %w", from, to, errdefs.ErrInvalidArgument)
}

// Next lists the statuses reachable from s
func (m Machine) Next(s types.OrderStatus) []types.OrderStatus {
	var next []types.OrderStatus
	for _, to := range types.OrderStatuses {
		if to != s && m.Validate(s, to) == nil {
			next = append(next, to)
		}
	}
	return next
}
