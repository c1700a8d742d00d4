package migrate

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Legacy collection files
const (
	UsersFile    = "users.json"
	ProductsFile = "products.json"
	OrdersFile   = "orders.json"
)

// timestamp layouts written by the legacy service, which stored naive UTC
// times in ISO format
var legacyLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// legacyTime parses legacy timestamps, which may be null
type legacyTime struct {
	time.Time
	Valid bool
}

func (t *legacyTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	for _, layout := range legacyLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t legacyTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

type legacyUser struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FullName       string     `json:"full_name"`
	HashedPassword string     `json:"hashed_password"`
	Role           string     `json:"role"`
	IsActive       *bool      `json:"is_active"`
	LoginCount     int        `json:"login_count"`
	LastLogin      legacyTime `json:"last_login"`
	LastDevice     string     `json:"last_device"`
	RegisteredFrom string     `json:"registered_from"`
	CreatedAt      legacyTime `json:"created_at"`
	UpdatedAt      legacyTime `json:"updated_at"`
}

func (l legacyUser) convert() (*types.User, error) {
	if l.ID == "" || l.Username == "" {
		return nil, fmt.Errorf("user without id or username: %w", errdefs.ErrInvalidArgument)
	}
	if l.HashedPassword == "" {
		return nil, fmt.Errorf("user %s has no password hash: %w", l.ID, errdefs.ErrInvalidArgument)
	}

	role := types.Role(strings.ToLower(l.Role))
	if role == "" {
		role = types.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("user %s has unknown role %q: %w", l.ID, l.Role, errdefs.ErrInvalidArgument)
	}

	active := true
	if l.IsActive != nil {
		active = *l.IsActive
	}

	return &types.User{
		ID:             l.ID,
		Username:       l.Username,
		Email:          types.NormalizeEmail(l.Email),
		FullName:       l.FullName,
		PasswordHash:   l.HashedPassword,
		Role:           role,
		IsActive:       active,
		LoginCount:     l.LoginCount,
		LastLogin:      l.LastLogin.ptr(),
		LastDevice:     l.LastDevice,
		RegisteredFrom: l.RegisteredFrom,
		CreatedAt:      l.CreatedAt.Time,
		UpdatedAt:      l.UpdatedAt.ptr(),
	}, nil
}

type legacyProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	CreatedAt   legacyTime      `json:"created_at"`
	UpdatedAt   legacyTime      `json:"updated_at"`
}

func (l legacyProduct) convert() (*types.Product, error) {
	if l.ID == "" {
		return nil, fmt.Errorf("product without id: %w", errdefs.ErrInvalidArgument)
	}
	draft := types.ProductDraft{
		Name:        l.Name,
		Description: l.Description,
		Price:       l.Price,
		Stock:       l.Stock,
		Category:    l.Category,
	}
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("product %s: %w", l.ID, err)
	}

	return &types.Product{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		Price:       l.Price,
		Stock:       l.Stock,
		Category:    l.Category,
		CreatedAt:   l.CreatedAt.Time,
		UpdatedAt:   l.UpdatedAt.ptr(),
	}, nil
}

type legacyOrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type legacyOrder struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Items       []legacyOrderItem `json:"items"`
	Status      string            `json:"status"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	CreatedAt   legacyTime        `json:"created_at"`
	UpdatedAt   legacyTime        `json:"updated_at"`
}

// convert maps a legacy order. The total is recomputed from the items.
func (l legacyOrder) convert() (*types.Order, error) {
	if l.ID == "" || l.UserID == "" {
		return nil, fmt.Errorf("order without id or owner: %w", errdefs.ErrInvalidArgument)
	}
	if len(l.Items) == 0 {
		return nil, fmt.Errorf("order %s has no items: %w", l.ID, errdefs.ErrInvalidArgument)
	}

	status := types.OrderStatus(l.Status)
	if status == "" {
		status = types.OrderStatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("order %s has unknown status %q: %w", l.ID, l.Status, errdefs.ErrInvalidArgument)
	}

	order := &types.Order{
		ID:          l.ID,
		UserID:      l.UserID,
		Status:      status,
		Items:       make([]types.OrderItem, 0, len(l.Items)),
		TotalAmount: decimal.Zero,
		CreatedAt:   l.CreatedAt.Time,
		UpdatedAt:   l.UpdatedAt.ptr(),
	}
	for i, item := range l.Items {
		if item.ProductID == "" || item.Quantity <= 0 || !item.Price.IsPositive() {
			return nil, fmt.Errorf("order %s item %d is invalid: %w", l.ID, i, errdefs.ErrInvalidArgument)
		}
		line := types.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		}
		order.Items = append(order.Items, line)
		order.TotalAmount = order.TotalAmount.Add(line.Subtotal())
	}
	return order, nil
}
