/*
Package policy decides who may do what.

Decide is a pure function of a principal, an action and a resource
descriptor. It reads nothing and changes nothing; callers load the resource,
ask for a decision and apply their mutation only when it is allowed:

	d := policy.Decide(principal, policy.CancelOrder, policy.Resource{
		OwnerID:     order.UserID,
		OrderStatus: order.Status,
	})
	if err := d.Err(); err != nil {
		return err
	}

A denial carries a human readable reason. Decision.Err reports it as
errdefs.ErrPermissionDenied, or as errdefs.ErrInvalidArgument when the actor
would be entitled but the target makes the request invalid (cancelling a
shipped order, deactivating yourself).

Rules:

  - inactive principals are denied everything
  - profiles, activity and orders are visible to their owner and to admins
  - listing users, user stats, product management, listing all orders and
    order status changes need the admin role
  - owners may edit email, full_name and password of their own record;
    admins may edit any field but cannot deactivate themselves
  - owners cancel only pending orders; admins cancel in any state
  - nobody deletes their own account, admins included
*/
package policy
