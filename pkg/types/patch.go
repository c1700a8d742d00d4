package types

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/containerd/errdefs"
	"github.com/shopspring/decimal"
)

// PasswordRules constrain new passwords
type PasswordRules struct {
	MinLength    int
	RequireDigit bool
}

// Check validates a plaintext password against the rules
func (r PasswordRules) Check(password string) error {
	if len(password) < r.MinLength {
		return fmt.Errorf("password must be at least %d characters: %w", r.MinLength, errdefs.ErrInvalidArgument)
	}
	if r.RequireDigit && !strings.ContainsFunc(password, unicode.IsDigit) {
		return fmt.Errorf("password must contain at least one digit: %w", errdefs.ErrInvalidArgument)
	}
	return nil
}

// UserDraft is a registration request
type UserDraft struct {
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
	FullName string `json:"full_name,omitempty" yaml:"full_name"`
	Password string `json:"password" yaml:"password"`
}

// Validate checks the draft before anything is stored
func (d UserDraft) Validate(rules PasswordRules) error {
	if n := len(d.Username); n < 3 || n > 50 {
		return fmt.Errorf("username must be 3-50 characters: %w", errdefs.ErrInvalidArgument)
	}
	if err := validateEmail(d.Email); err != nil {
		return err
	}
	return rules.Check(d.Password)
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return fmt.Errorf("invalid email %q: %w", email, errdefs.ErrInvalidArgument)
	}
	return nil
}

// User patch field names
const (
	FieldEmail    = "email"
	FieldFullName = "full_name"
	FieldPassword = "password"
	FieldRole     = "role"
	FieldIsActive = "is_active"
)

// SelfEditableUserFields are the fields a non-admin may change on their own record
var SelfEditableUserFields = []string{FieldEmail, FieldFullName, FieldPassword}

// UserPatch is an explicit partial update of a user. Nil fields are left untouched.
type UserPatch struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`

	// PasswordHash is filled in by the caller after hashing Password.
	PasswordHash string `json:"-"`
}

// Fields returns the names of the fields set in the patch
func (p UserPatch) Fields() []string {
	var fields []string
	if p.Email != nil {
		fields = append(fields, FieldEmail)
	}
	if p.FullName != nil {
		fields = append(fields, FieldFullName)
	}
	if p.Password != nil {
		fields = append(fields, FieldPassword)
	}
	if p.Role != nil {
		fields = append(fields, FieldRole)
	}
	if p.IsActive != nil {
		fields = append(fields, FieldIsActive)
	}
	return fields
}

// Validate checks every set field
func (p UserPatch) Validate(rules PasswordRules) error {
	if len(p.Fields()) == 0 {
		return fmt.Errorf("no fields to update: %w", errdefs.ErrInvalidArgument)
	}
	if p.Email != nil {
		if err := validateEmail(*p.Email); err != nil {
			return err
		}
	}
	if p.Password != nil {
		if err := rules.Check(*p.Password); err != nil {
			return err
		}
	}
	if p.Role != nil && !p.Role.Valid() {
		return fmt.Errorf("unknown role %q: %w", *p.Role, errdefs.ErrInvalidArgument)
	}
	return nil
}

// Apply merges the patch into u
func (p UserPatch) Apply(u *User) {
	if p.Email != nil {
		u.Email = NormalizeEmail(*p.Email)
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.PasswordHash != "" {
		u.PasswordHash = p.PasswordHash
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
}

// ProductDraft describes a new product
type ProductDraft struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description"`
	Price       decimal.Decimal `json:"price" yaml:"price"`
	Stock       int             `json:"stock" yaml:"stock"`
	Category    string          `json:"category" yaml:"category"`
}

// Validate checks the draft
func (d ProductDraft) Validate() error {
	if err := validateProductName(d.Name); err != nil {
		return err
	}
	if !d.Price.IsPositive() {
		return fmt.Errorf("price must be greater than zero: %w", errdefs.ErrInvalidArgument)
	}
	if d.Stock < 0 {
		return fmt.Errorf("stock must not be negative: %w", errdefs.ErrInvalidArgument)
	}
	if strings.TrimSpace(d.Category) == "" {
		return fmt.Errorf("category is required: %w", errdefs.ErrInvalidArgument)
	}
	return nil
}

func validateProductName(name string) error {
	if n := len(name); n < 1 || n > 200 {
		return fmt.Errorf("product name must be 1-200 characters: %w", errdefs.ErrInvalidArgument)
	}
	return nil
}

// ProductPatch is an explicit partial update of a product
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	Category    *string          `json:"category,omitempty"`
}

// Empty reports whether no field is set
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Stock == nil && p.Category == nil
}

// Validate checks every set field
func (p ProductPatch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("no fields to update: %w", errdefs.ErrInvalidArgument)
	}
	if p.Name != nil {
		if err := validateProductName(*p.Name); err != nil {
			return err
		}
	}
	if p.Price != nil && !p.Price.IsPositive() {
		return fmt.Errorf("price must be greater than zero: %w", errdefs.ErrInvalidArgument)
	}
	if p.Stock != nil && *p.Stock < 0 {
		return fmt.Errorf("stock must not be negative: %w", errdefs.ErrInvalidArgument)
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return fmt.Errorf("category must not be empty: %w", errdefs.ErrInvalidArgument)
	}
	return nil
}

// Apply merges the patch into prod
func (p ProductPatch) Apply(prod *Product) {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Description != nil {
		prod.Description = *p.Description
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Stock != nil {
		prod.Stock = *p.Stock
	}
	if p.Category != nil {
		prod.Category = *p.Category
	}
}

// Validate checks an order request before any transaction starts
func (r OrderRequest) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("order must contain at least one item: %w", errdefs.ErrInvalidArgument)
	}
	for i, item := range r.Items {
		if item.ProductID == "" {
			return fmt.Errorf("item %d: product id is required: %w", i, errdefs.ErrInvalidArgument)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be greater than zero: %w", i, errdefs.ErrInvalidArgument)
		}
	}
	return nil
}
