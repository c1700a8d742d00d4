package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the authorization role carried by a user
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is a registered principal
type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FullName       string     `json:"full_name,omitempty"`
	PasswordHash   string     `json:"password_hash,omitempty"`
	Role           Role       `json:"role"`
	IsActive       bool       `json:"is_active"`
	LoginCount     int        `json:"login_count"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	LastDevice     string     `json:"last_device,omitempty"`
	RegisteredFrom string     `json:"registered_from,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// Principal returns the acting identity for u
func (u *User) Principal() Principal {
	return Principal{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

// Principal is the authenticated actor performing an action
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
}

// IsAdmin reports whether the principal holds the admin role
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Product is a globally administered catalog entry
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every order status in lifecycle order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Order is a purchase owned by exactly one user
type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Items       []OrderItem     `json:"items"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// Quantities returns the total ordered quantity per product
func (o *Order) Quantities() map[string]int {
	q := make(map[string]int, len(o.Items))
	for _, item := range o.Items {
		q[item.ProductID] += item.Quantity
	}
	return q
}

// OrderItem is one line of an order. Name and price are captured from the
// product when the order is created.
type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Subtotal returns quantity × price
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderRequest is the client payload for creating an order
type OrderRequest struct {
	// UserID is ignored; ownership always comes from the caller.
	UserID string             `json:"user_id,omitempty"`
	Items  []OrderItemRequest `json:"items"`
}

// OrderItemRequest names a product and a quantity
type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Token is an issued bearer credential
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UserStats summarizes the user collection
type UserStats struct {
	TotalUsers    int     `json:"total_users"`
	ActiveUsers   int     `json:"active_users"`
	InactiveUsers int     `json:"inactive_users"`
	AdminUsers    int     `json:"admin_users"`
	RegularUsers  int     `json:"regular_users"`
	TotalLogins   int     `json:"total_logins"`
	AverageLogins float64 `json:"average_logins_per_user"`
}

// UserActivity summarizes one user's logins and orders
type UserActivity struct {
	UserID          string          `json:"user_id"`
	Username        string          `json:"username"`
	LoginCount      int             `json:"login_count"`
	LastLogin       *time.Time      `json:"last_login,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	TotalOrders     int             `json:"total_orders"`
	PendingOrders   int             `json:"pending_orders"`
	CompletedOrders int             `json:"completed_orders"`
	CancelledOrders int             `json:"cancelled_orders"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
}

// Page is one slice of a filtered listing
type Page[T any] struct {
	Items []*T `json:"data"`
	Total int  `json:"total"`
	Skip  int  `json:"skip"`
	Limit int  `json:"limit"`
	Pages int  `json:"pages"`
}

// Revocation marks a token id as logged out until the token expires
type Revocation struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
	RevokedAt time.Time `json:"revoked_at"`
}
