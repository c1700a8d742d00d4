/*
Package types defines the core data structures used throughout storefront.

This package contains the domain model shared by every other package: users and
the principals derived from them, catalog products, and orders with their line
items. It also holds the request shapes that enter the system (drafts, patches,
order requests) together with their validation.

# Core Types

Identity:
  - User: registered account with role, active flag and login statistics
  - Role: admin or user
  - Principal: the authenticated actor derived from a User

Catalog:
  - Product: priced item with a non-negative stock level
  - ProductDraft / ProductPatch: creation and partial-update payloads

Orders:
  - Order: items, status, total and the owning user id
  - OrderItem: product snapshot (name, price) plus quantity
  - OrderStatus: pending, processing, completed, cancelled
  - OrderRequest: client payload; only product ids and quantities are trusted

# Patches

Partial updates are explicit structs with pointer fields. A nil field means
"leave unchanged". Each patch validates itself before it is applied, and Apply
never fails, so a patch can be merged inside a storage transaction without any
validation error surfacing halfway through a commit:

	patch := types.ProductPatch{Stock: &newStock}
	if err := patch.Validate(); err != nil {
		return err
	}
	// later, inside the write transaction
	patch.Apply(product)

# Money

Prices and totals use shopspring/decimal so that totals are exact sums of
quantity × price. Decimals serialize as JSON strings ("45900.5") and accept
plain JSON numbers on input, which keeps legacy collection files readable.

# Errors

Validation failures wrap errdefs.ErrInvalidArgument so callers can classify
them with errdefs.IsInvalidArgument.
*/
package types
