package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/log"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// errDryRun rolls back a dry-run import after everything has been checked
var errDryRun = errors.New("dry run")

// Options controls an import
type Options struct {
	// DryRun checks and counts every record without committing anything
	DryRun bool
}

// CollectionReport counts the outcome for one collection
type CollectionReport struct {
	File     string `json:"file"`
	Found    bool   `json:"found"`
	Read     int    `json:"read"`
	Imported int    `json:"imported"`
	// Existing counts records skipped because their id is already stored
	Existing int `json:"existing"`
	// Conflicts counts users skipped because the username or email is taken
	Conflicts int `json:"conflicts"`
	Invalid   int `json:"invalid"`
}

// Report is the result of Import
type Report struct {
	DryRun   bool              `json:"dry_run"`
	Users    *CollectionReport `json:"users"`
	Products *CollectionReport `json:"products"`
	Orders   *CollectionReport `json:"orders"`
}

// Imported returns the number of records imported across collections
func (r *Report) Imported() int {
	return r.Users.Imported + r.Products.Imported + r.Orders.Imported
}

type batch struct {
	users    []*types.User
	products []*types.Product
	orders   []*types.Order
}

// Import reads users.json, products.json and orders.json from dir and
// inserts their records into store in one transaction. Records whose id is
// already stored are skipped, as are users whose username or email is taken.
// Records that cannot be converted are counted as invalid and skipped. A
// missing file imports nothing for that collection.
func Import(ctx context.Context, store storage.Store, dir string, opts Options) (*Report, error) {
	logger := log.WithComponent("migrate")
	report := &Report{
		DryRun:   opts.DryRun,
		Users:    &CollectionReport{File: UsersFile},
		Products: &CollectionReport{File: ProductsFile},
		Orders:   &CollectionReport{File: OrdersFile},
	}

	var b batch
	var err error
	if b.users, err = readFile(dir, report.Users, legacyUser.convert, logger); err != nil {
		return nil, err
	}
	if b.products, err = readFile(dir, report.Products, legacyProduct.convert, logger); err != nil {
		return nil, err
	}
	if b.orders, err = readFile(dir, report.Orders, legacyOrder.convert, logger); err != nil {
		return nil, err
	}

	err = store.Update(ctx, func(tx *storage.Tx) error {
		if err := importUsers(tx, b.users, report.Users); err != nil {
			return err
		}
		if err := importAll(tx, storage.Products, b.products, func(p *types.Product) string { return p.ID }, report.Products); err != nil {
			return err
		}
		if err := importAll(tx, storage.Orders, b.orders, func(o *types.Order) string { return o.ID }, report.Orders); err != nil {
			return err
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, err
	}

	logger.Info().
		Bool("dry_run", opts.DryRun).
		Int("users", report.Users.Imported).
		Int("products", report.Products.Imported).
		Int("orders", report.Orders.Imported).
		Msg("Legacy import finished")
	return report, nil
}

// readFile decodes one legacy JSON array and converts its records
func readFile[L any, T any](dir string, report *CollectionReport, convert func(L) (*T, error), logger zerolog.Logger) ([]*T, error) {
	data, err := os.ReadFile(filepath.Join(dir, report.File))
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("file", report.File).Msg("Legacy file not found, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", report.File, err)
	}
	report.Found = true

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s is not a JSON array: %w", report.File, errdefs.ErrInvalidArgument)
	}
	report.Read = len(raw)

	out := make([]*T, 0, len(raw))
	for i, msg := range raw {
		var legacy L
		if err := json.Unmarshal(msg, &legacy); err != nil {
			report.Invalid++
			logger.Warn().Err(err).Str("file", report.File).Int("index", i).Msg("Skipping undecodable record")
			continue
		}
		doc, err := convert(legacy)
		if err != nil {
			report.Invalid++
			logger.Warn().Err(err).Str("file", report.File).Int("index", i).Msg("Skipping invalid record")
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func importAll[T any](tx *storage.Tx, c storage.Collection[T], docs []*T, id func(*T) string, report *CollectionReport) error {
	for _, doc := range docs {
		exists, err := c.Exists(tx, id(doc))
		if err != nil {
			return err
		}
		if exists {
			report.Existing++
			continue
		}
		if err := c.Create(tx, doc); err != nil {
			return err
		}
		report.Imported++
	}
	return nil
}

func importUsers(tx *storage.Tx, users []*types.User, report *CollectionReport) error {
	for _, u := range users {
		exists, err := storage.Users.Exists(tx, u.ID)
		if err != nil {
			return err
		}
		if exists {
			report.Existing++
			continue
		}

		conflict, err := isTaken(tx, "username", u.Username)
		if err != nil {
			return err
		}
		if !conflict && u.Email != "" {
			if conflict, err = isTaken(tx, "email", u.Email); err != nil {
				return err
			}
		}
		if conflict {
			report.Conflicts++
			continue
		}

		if err := storage.Users.Create(tx, u); err != nil {
			return err
		}
		report.Imported++
	}
	return nil
}

func isTaken(tx *storage.Tx, field, value string) (bool, error) {
	_, err := storage.Users.Find(tx, field, value)
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}
