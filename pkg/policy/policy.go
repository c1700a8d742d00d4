package policy

import (
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/types"
)

// Action names an operation subject to authorization
type Action string

const (
	ViewProfile       Action = "view_profile"
	ViewUser          Action = "view_user"
	ViewActivity      Action = "view_activity"
	ListUsers         Action = "list_users"
	ViewUserStats     Action = "view_user_stats"
	UpdateUser        Action = "update_user"
	DeleteUser        Action = "delete_user"
	DeactivateUser    Action = "deactivate_user"
	ActivateUser      Action = "activate_user"
	ManageProducts    Action = "manage_products"
	ViewOrder         Action = "view_order"
	ListAllOrders     Action = "list_all_orders"
	CreateOrder       Action = "create_order"
	CancelOrder       Action = "cancel_order"
	UpdateOrderStatus Action = "update_order_status"
)

// Resource describes the target of an action
type Resource struct {
	// OwnerID is the id of the user owning the resource. For user actions it
	// is the target user's own id.
	OwnerID string

	// OrderStatus is the current status of a targeted order
	OrderStatus types.OrderStatus

	// Fields lists the user fields an update touches
	Fields []string

	// Deactivates is set when an update turns is_active off
	Deactivates bool
}

// Decision is the outcome of Decide
type Decision struct {
	Allowed bool
	Reason  string

	// Invalid marks a denial where the actor is entitled to the action but
	// the target or its state makes the request invalid
	Invalid bool
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...), Invalid: true}
}

// Err converts a denial into a typed error, or returns nil when allowed
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Invalid:
		return fmt.Errorf("%s: %w", d.Reason, errdefs.ErrInvalidArgument)
	default:
		return fmt.Errorf("%s: %w", d.Reason, errdefs.ErrPermissionDenied)
	}
}

// Decide evaluates whether principal may perform action on resource. It has
// no side effects.
func Decide(principal types.Principal, action Action, resource Resource) Decision {
	if !principal.IsActive {
		return deny("account %q is inactive", principal.Username)
	}

	isOwner := resource.OwnerID != "" && resource.OwnerID == principal.ID
	isAdmin := principal.IsAdmin()

	switch action {
	case ViewProfile, ViewUser, ViewActivity, ViewOrder:
		if isOwner || isAdmin {
			return allow()
		}
		return deny("not enough permissions")

	case ListUsers, ViewUserStats, ManageProducts, ListAllOrders, UpdateOrderStatus:
		if isAdmin {
			return allow()
		}
		return deny("admin role required")

	case CreateOrder:
		return allow()

	case UpdateUser:
		return decideUpdateUser(isOwner, isAdmin, resource)

	case DeleteUser:
		if isOwner {
			return deny("cannot delete your own account")
		}
		if isAdmin {
			return allow()
		}
		return deny("admin role required")

	case DeactivateUser, ActivateUser:
		if !isAdmin {
			return deny("admin role required")
		}
		if isOwner {
			return invalid("cannot change the active state of your own account")
		}
		return allow()

	case CancelOrder:
		if isAdmin {
			return allow()
		}
		if !isOwner {
			return deny("not enough permissions")
		}
		if resource.OrderStatus != types.OrderStatusPending {
			return invalid("cannot cancel order with status %q", resource.OrderStatus)
		}
		return allow()
	}

	return deny("unknown action %q", action)
}

func decideUpdateUser(isOwner, isAdmin bool, resource Resource) Decision {
	if isAdmin {
		if isOwner && resource.Deactivates {
			return invalid("cannot deactivate your own account")
		}
		return allow()
	}
	if !isOwner {
		return deny("not enough permissions")
	}
	for _, field := range resource.Fields {
		if !selfEditable(field) {
			return deny("field %q can only be changed by an admin", field)
		}
	}
	return allow()
}

func selfEditable(field string) bool {
	for _, f := range types.SelfEditableUserFields {
		if f == field {
			return true
		}
	}
	return false
}
