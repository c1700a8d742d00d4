package manager

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/events"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/cuemby/storefront/pkg/policy"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/shopspring/decimal"
)

// GetProfile returns the principal's own user record
func (m *Manager) GetProfile(ctx context.Context, principal types.Principal) (*types.User, error) {
	if err := policy.Decide(principal, policy.ViewProfile, policy.Resource{OwnerID: principal.ID}).Err(); err != nil {
		return nil, err
	}
	return m.users.Get(ctx, principal.ID)
}

// GetUser returns the user with id. Only the user themself or an admin may
// read it.
func (m *Manager) GetUser(ctx context.Context, principal types.Principal, id string) (*types.User, error) {
	if err := policy.Decide(principal, policy.ViewUser, policy.Resource{OwnerID: id}).Err(); err != nil {
		return nil, err
	}
	return m.users.Get(ctx, id)
}

// ListUsers returns one page of users matching q
func (m *Manager) ListUsers(ctx context.Context, principal types.Principal, q UserQuery) (*types.Page[types.User], error) {
	if err := policy.Decide(principal, policy.ListUsers, policy.Resource{}).Err(); err != nil {
		return nil, err
	}
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}

	users, err := m.users.Filter(ctx, q.match)
	if err != nil {
		return nil, err
	}
	q.sort(users)
	return paginate(users, q.PageRequest), nil
}

// UpdateUser applies patch to the user with id. Owners may change their
// email, full name and password; admins may change any field but cannot
// deactivate themselves.
func (m *Manager) UpdateUser(ctx context.Context, principal types.Principal, id string, patch types.UserPatch) (user *types.User, err error) {
	defer observe("update_user", metrics.NewTimer(), &err)

	deactivates := patch.IsActive != nil && !*patch.IsActive
	decision := policy.Decide(principal, policy.UpdateUser, policy.Resource{
		OwnerID:     id,
		Fields:      patch.Fields(),
		Deactivates: deactivates,
	})
	if err := decision.Err(); err != nil {
		return nil, err
	}
	if err := patch.Validate(m.cfg.Auth.PasswordRules()); err != nil {
		return nil, err
	}

	if patch.Password != nil {
		hash, err := m.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = hash
	}

	now := m.now().UTC()
	err = m.store.Update(ctx, func(tx *storage.Tx) error {
		if patch.Email != nil {
			if err := checkUnique(tx, id, "email", types.NormalizeEmail(*patch.Email)); err != nil {
				return err
			}
		}
		var err error
		user, err = storage.Users.Update(tx, id, storage.PatchFunc[types.User](func(u *types.User) error {
			patch.Apply(u)
			u.UpdatedAt = &now
			return nil
		}))
		return err
	})
	if err != nil {
		return nil, err
	}

	fields := patch.Fields()
	m.logger.Info().Str("user_id", id).Strs("fields", fields).Str("by", principal.Username).Msg("User updated")
	m.PublishEvent(&events.Event{
		Type:     events.EventUserUpdated,
		Actor:    principal.Username,
		Subject:  id,
		Message:  "User updated",
		Metadata: map[string]string{"fields": strings.Join(fields, ",")},
	})
	return user, nil
}

// DeleteUser removes the user with id. Nobody may delete their own account.
func (m *Manager) DeleteUser(ctx context.Context, principal types.Principal, id string) (err error) {
	defer observe("delete_user", metrics.NewTimer(), &err)

	if err := policy.Decide(principal, policy.DeleteUser, policy.Resource{OwnerID: id}).Err(); err != nil {
		return err
	}

	deleted, err := m.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("user %s not found: %w", id, errdefs.ErrNotFound)
	}

	m.logger.Info().Str("user_id", id).Str("by", principal.Username).Msg("User deleted")
	m.PublishEvent(&events.Event{
		Type:    events.EventUserDeleted,
		Actor:   principal.Username,
		Subject: id,
		Message: "User deleted",
	})
	return nil
}

// DeactivateUser disables the account with id
func (m *Manager) DeactivateUser(ctx context.Context, principal types.Principal, id string) (*types.User, error) {
	return m.setActive(ctx, principal, id, false)
}

// ActivateUser enables the account with id
func (m *Manager) ActivateUser(ctx context.Context, principal types.Principal, id string) (*types.User, error) {
	return m.setActive(ctx, principal, id, true)
}

func (m *Manager) setActive(ctx context.Context, principal types.Principal, id string, active bool) (user *types.User, err error) {
	action, eventType, verb := policy.DeactivateUser, events.EventUserDeactivated, "deactivated"
	if active {
		action, eventType, verb = policy.ActivateUser, events.EventUserActivated, "activated"
	}
	defer observe(string(action), metrics.NewTimer(), &err)

	if err := policy.Decide(principal, action, policy.Resource{OwnerID: id}).Err(); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	user, err = m.users.Update(ctx, id, storage.PatchFunc[types.User](func(u *types.User) error {
		u.IsActive = active
		u.UpdatedAt = &now
		return nil
	}))
	if err != nil {
		return nil, err
	}

	m.logger.Info().Str("user_id", id).Str("by", principal.Username).Msgf("User %s", verb)
	m.PublishEvent(&events.Event{
		Type:     eventType,
		Actor:    principal.Username,
		Subject:  id,
		Message:  fmt.Sprintf("User %s has been %s", user.Username, verb),
		Metadata: map[string]string{"username": user.Username},
	})
	return user, nil
}

// UserStats summarizes all users
func (m *Manager) UserStats(ctx context.Context, principal types.Principal) (*types.UserStats, error) {
	if err := policy.Decide(principal, policy.ViewUserStats, policy.Resource{}).Err(); err != nil {
		return nil, err
	}

	users, err := m.users.All(ctx)
	if err != nil {
		return nil, err
	}

	stats := &types.UserStats{TotalUsers: len(users)}
	for _, u := range users {
		if u.IsActive {
			stats.ActiveUsers++
		}
		switch u.Role {
		case types.RoleAdmin:
			stats.AdminUsers++
		case types.RoleUser:
			stats.RegularUsers++
		}
		stats.TotalLogins += u.LoginCount
	}
	stats.InactiveUsers = stats.TotalUsers - stats.ActiveUsers
	if stats.TotalUsers > 0 {
		avg := float64(stats.TotalLogins) / float64(stats.TotalUsers)
		stats.AverageLogins = math.Round(avg*100) / 100
	}
	return stats, nil
}

// UserActivity summarizes the logins and orders of the user with id.
// Cancelled orders do not count towards the amount spent.
func (m *Manager) UserActivity(ctx context.Context, principal types.Principal, id string) (*types.UserActivity, error) {
	if err := policy.Decide(principal, policy.ViewActivity, policy.Resource{OwnerID: id}).Err(); err != nil {
		return nil, err
	}

	var user *types.User
	var orders []*types.Order
	err := m.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		if user, err = storage.Users.Get(tx, id); err != nil {
			return err
		}
		orders, err = storage.Orders.Filter(tx, func(o *types.Order) bool {
			return o.UserID == id
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	activity := &types.UserActivity{
		UserID:      user.ID,
		Username:    user.Username,
		LoginCount:  user.LoginCount,
		LastLogin:   user.LastLogin,
		CreatedAt:   user.CreatedAt,
		TotalOrders: len(orders),
		TotalSpent:  decimal.Zero,
	}
	for _, o := range orders {
		switch o.Status {
		case types.OrderStatusPending:
			activity.PendingOrders++
		case types.OrderStatusCompleted:
			activity.CompletedOrders++
		case types.OrderStatusCancelled:
			activity.CancelledOrders++
			continue
		}
		activity.TotalSpent = activity.TotalSpent.Add(o.TotalAmount)
	}
	return activity, nil
}
