package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// dsnParams are added to every database path. journal_mode=WAL lets a
// reader keep its snapshot while another connection writes.
const dsnParams = "_busy_timeout=5000&_journal_mode=WAL"

// dsn appends dsnParams to path, which may already carry a query such as
// file:groupbanker.db?mode=rwc.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + dsnParams
	}
	return path + "?" + dsnParams
}

// Database owns the groupbanker SQLite file and its schema.
type Database struct {
	db     *gorm.DB
	logger *slog.Logger
}

type options struct {
	schemaVersion int
	logger        *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithSchemaVersion sets the schema version the database is opened at.
// A version above the stored one recreates the table and discards its rows.
func WithSchemaVersion(version int) Option {
	return func(o *options) {
		o.schemaVersion = version
	}
}

// WithLogger sets the logger used by the store. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open opens the database at path, creating the file and schema if absent.
// The returned Database must be closed by the caller.
func Open(path string, opts ...Option) (*Database, error) {
	o := options{schemaVersion: SchemaVersion}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.schemaVersion < 1 {
		return nil, fmt.Errorf("%w: invalid schema version %d", ErrOpenFailure, o.schemaVersion)
	}

	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger:                 newGormLogger(o.logger),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to database: %w", ErrOpenFailure, err)
	}

	d := &Database{db: db, logger: o.logger}
	if err := applySchema(db, o.schemaVersion, o.logger); err != nil {
		d.Close()
		return nil, fmt.Errorf("%w: failed to migrate schema: %w", ErrOpenFailure, err)
	}

	o.logger.Debug("database opened", "path", path, "schema_version", o.schemaVersion)
	return d, nil
}

// Close releases the database handle. It is safe to call more than once.
func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	d.db = nil
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// CreateTransaction stores a new transaction and returns its assigned id.
func (d *Database) CreateTransaction(ctx context.Context, amount float64, description, time string) (int64, error) {
	tx := Transaction{
		Amount:      amount,
		Description: description,
		Time:        time,
	}
	if err := d.SaveTransaction(ctx, &tx); err != nil {
		return 0, err
	}
	return tx.ID, nil
}

// SaveTransaction inserts tx and fills in its ID.
func (d *Database) SaveTransaction(ctx context.Context, tx *Transaction) error {
	if d.db == nil {
		return ErrClosed
	}
	if err := validate(tx); err != nil {
		return err
	}

	d.logger.Debug("saving transaction",
		"amount", tx.Amount, "description", tx.Description, "time", tx.Time)

	if err := d.db.WithContext(ctx).Create(tx).Error; err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func validate(tx *Transaction) error {
	switch {
	case tx.ID != 0:
		return fmt.Errorf("%w: id is assigned by the store", ErrConstraintViolation)
	case math.IsNaN(tx.Amount):
		return fmt.Errorf("%w: amount is required", ErrConstraintViolation)
	case tx.Description == "":
		return fmt.Errorf("%w: description is required", ErrConstraintViolation)
	case tx.Time == "":
		return fmt.Errorf("%w: time is required", ErrConstraintViolation)
	}
	return nil
}

// FetchAllTransactions returns every stored transaction in storage order.
//
// Rows are read lazily. One range over the sequence sees a single snapshot
// of the table; ranging again runs a new query. Iteration stops at the first
// error, which is yielded with a zero Transaction.
func (d *Database) FetchAllTransactions(ctx context.Context) iter.Seq2[Transaction, error] {
	return func(yield func(Transaction, error) bool) {
		if d.db == nil {
			yield(Transaction{}, ErrClosed)
			return
		}

		rows, err := d.db.WithContext(ctx).Model(&Transaction{}).Rows()
		if err != nil {
			yield(Transaction{}, fmt.Errorf("failed to query transactions: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var tx Transaction
			if err := d.db.ScanRows(rows, &tx); err != nil {
				yield(Transaction{}, fmt.Errorf("failed to scan transaction: %w", err))
				return
			}
			if !yield(tx, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Transaction{}, fmt.Errorf("failed to iterate transactions: %w", err))
		}
	}
}

// ListTransactions collects FetchAllTransactions into a slice.
// It returns an empty slice, not nil, for an empty store.
func (d *Database) ListTransactions(ctx context.Context) ([]Transaction, error) {
	transactions := []Transaction{}
	for tx, err := range d.FetchAllTransactions(ctx) {
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

// CountTransactions returns the number of stored transactions.
func (d *Database) CountTransactions(ctx context.Context) (int64, error) {
	if d.db == nil {
		return 0, ErrClosed
	}
	var count int64
	if err := d.db.WithContext(ctx).Model(&Transaction{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// SchemaVersion returns the schema version recorded in the database file.
func (d *Database) SchemaVersion(ctx context.Context) (int, error) {
	if d.db == nil {
		return 0, ErrClosed
	}
	return userVersion(d.db.WithContext(ctx))
}

// Ping verifies the database handle is still usable.
func (d *Database) Ping(ctx context.Context) error {
	if d.db == nil {
		return ErrClosed
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// IsConstraintViolation reports whether err is a rejected insert.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}
