package transaction

import (
	"context"

	"gorm.io/gorm"
)

type TransactionContextKey struct{}

func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, TransactionContextKey{}, tx)
}

type Database struct {
	db *gorm.DB
}

// GetTx returns the transaction carried by ctx, falling back to the base
// connection when none is in flight.
func (t *Database) GetTx(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TransactionContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return t.db
}

// Transaction runs fn inside a database transaction. The transaction handle
// travels in the context, so repository calls made with the derived context
// join it transparently.
func (t *Database) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.GetTx(ctx).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db}
}
