/*
Package manager implements the storefront application context.

A Manager owns the document store and every component built on top of it,
and exposes the complete action surface: authentication, user administration,
the product catalog and orders. There are no package-level store instances;
the CLI creates one Manager per process and passes it to every command.

# Architecture

	┌──────────────────────── MANAGER ───────────────────────────┐
	│                                                              │
	│  Actions: Register, Authenticate, Logout, ListUsers,        │
	│           UpdateUser, CreateProduct, CreateOrder, ...        │
	│       │                                                      │
	│       ├─► auth.Resolver      token → Principal               │
	│       ├─► policy.Decide      role and ownership gate         │
	│       ├─► inventory.Manager  stock + order transactions      │
	│       ├─► security           bcrypt hashes, HS256 tokens     │
	│       └─► events.Broker      domain events after commit      │
	│                     │                                        │
	│  ┌──────────────────▼───────────────────────────┐          │
	│  │            storage.Store (bbolt)              │          │
	│  │  users, products, orders, revocations         │          │
	│  └────────────────────────────────────────────────┘         │
	└──────────────────────────────────────────────────────────┘

Every action that acts on behalf of a user takes a types.Principal, usually
obtained from Principal(ctx, token). Authorization is decided before any
record is written; read-modify-write steps, uniqueness checks included, run
inside a single store transaction.

Errors carry containerd/errdefs classes: NotFound, Unauthenticated,
PermissionDenied, InvalidArgument, AlreadyExists, Internal.

# Usage

	mgr, err := manager.NewManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	token, err := mgr.Authenticate(ctx, "alice", "s3cretpass1", "cli")
	principal, err := mgr.Principal(ctx, token.AccessToken)
	order, err := mgr.CreateOrder(ctx, principal, types.OrderRequest{
		Items: []types.OrderItemRequest{{ProductID: id, Quantity: 2}},
	})

# Metrics

Each mutating action updates storefront_actions_total and
storefront_action_duration_seconds. MetricsCollector refreshes the entity
gauges (users, products, stock units, orders by status) and is run by the
jobs package on a schedule.
*/
package manager
