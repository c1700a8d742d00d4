package manager

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/shopspring/decimal"
)

// Pagination limits
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest selects a window of a listing. A zero Limit means DefaultLimit.
type PageRequest struct {
	Skip  int
	Limit int
}

func (p PageRequest) normalize() (PageRequest, error) {
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return p, fmt.Errorf("limit must be between 1 and %d: %w", MaxLimit, errdefs.ErrInvalidArgument)
	}
	if p.Skip < 0 {
		return p, fmt.Errorf("skip must not be negative: %w", errdefs.ErrInvalidArgument)
	}
	return p, nil
}

func paginate[T any](items []*T, p PageRequest) *types.Page[T] {
	total := len(items)
	start := min(p.Skip, total)
	end := min(start+p.Limit, total)

	return &types.Page[T]{
		Items: items[start:end],
		Total: total,
		Skip:  p.Skip,
		Limit: p.Limit,
		Pages: (total + p.Limit - 1) / p.Limit,
	}
}

// User listing sort keys
const (
	SortByCreatedAt  = "created_at"
	SortByUsername   = "username"
	SortByEmail      = "email"
	SortByLoginCount = "login_count"
)

// Sort orders
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// UserQuery filters and sorts ListUsers
type UserQuery struct {
	PageRequest

	Role types.Role
	// Search matches username, email or full name, case-insensitively
	Search string
	SortBy string
	Order  string
}

func (q UserQuery) normalize() (UserQuery, error) {
	page, err := q.PageRequest.normalize()
	if err != nil {
		return q, err
	}
	q.PageRequest = page

	if q.Role != "" && !q.Role.Valid() {
		return q, fmt.Errorf("unknown role %q: %w", q.Role, errdefs.ErrInvalidArgument)
	}
	if q.SortBy == "" {
		q.SortBy = SortByCreatedAt
	}
	switch q.SortBy {
	case SortByCreatedAt, SortByUsername, SortByEmail, SortByLoginCount:
	default:
		return q, fmt.Errorf("cannot sort users by %q: %w", q.SortBy, errdefs.ErrInvalidArgument)
	}
	if q.Order == "" {
		q.Order = OrderDesc
	}
	if q.Order != OrderAsc && q.Order != OrderDesc {
		return q, fmt.Errorf("order must be %s or %s: %w", OrderAsc, OrderDesc, errdefs.ErrInvalidArgument)
	}
	return q, nil
}

func (q UserQuery) match(u *types.User) bool {
	if q.Role != "" && u.Role != q.Role {
		return false
	}
	if q.Search == "" {
		return true
	}
	needle := strings.ToLower(q.Search)
	return strings.Contains(strings.ToLower(u.Username), needle) ||
		strings.Contains(strings.ToLower(u.Email), needle) ||
		strings.Contains(strings.ToLower(u.FullName), needle)
}

func (q UserQuery) sort(users []*types.User) {
	key := func(a, b *types.User) int {
		switch q.SortBy {
		case SortByUsername:
			return cmp.Compare(a.Username, b.Username)
		case SortByEmail:
			return cmp.Compare(a.Email, b.Email)
		case SortByLoginCount:
			return cmp.Compare(a.LoginCount, b.LoginCount)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	slices.SortFunc(users, func(a, b *types.User) int {
		c := key(a, b)
		if q.Order == OrderDesc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// ProductQuery filters ListProducts
type ProductQuery struct {
	PageRequest

	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

func (q ProductQuery) normalize() (ProductQuery, error) {
	page, err := q.PageRequest.normalize()
	if err != nil {
		return q, err
	}
	q.PageRequest = page

	if q.MinPrice != nil && q.MinPrice.IsNegative() {
		return q, fmt.Errorf("min price must not be negative: %w", errdefs.ErrInvalidArgument)
	}
	if q.MaxPrice != nil && q.MaxPrice.IsNegative() {
		return q, fmt.Errorf("max price must not be negative: %w", errdefs.ErrInvalidArgument)
	}
	return q, nil
}

func (q ProductQuery) match(p *types.Product) bool {
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	if q.MinPrice != nil && p.Price.LessThan(*q.MinPrice) {
		return false
	}
	if q.MaxPrice != nil && p.Price.GreaterThan(*q.MaxPrice) {
		return false
	}
	return true
}

// OrderQuery filters ListOrders
type OrderQuery struct {
	PageRequest

	Status types.OrderStatus
}

func (q OrderQuery) normalize() (OrderQuery, error) {
	page, err := q.PageRequest.normalize()
	if err != nil {
		return q, err
	}
	q.PageRequest = page

	if q.Status != "" && !q.Status.Valid() {
		return q, fmt.Errorf("unknown order status %q: %w", q.Status, errdefs.ErrInvalidArgument)
	}
	return q, nil
}

// byCreation orders records oldest first, ties broken by id
func byCreation[T any](items []*T, created func(*T) time.Time, id func(*T) string) {
	slices.SortFunc(items, func(a, b *T) int {
		if c := created(a).Compare(created(b)); c != 0 {
			return c
		}
		return cmp.Compare(id(a), id(b))
	})
}
