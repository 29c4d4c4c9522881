package services

import (
	"context"

	"github.com/upb/authd/repositories"
)

// WithTransaction executes fn within a database transaction.
// Commits on success and rolls back on error. The ctx handed to fn carries the
// transaction, so repository calls made with it join the transaction; a ctx
// that already carries one is joined rather than nested.
func WithTransaction(ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) error) error {
	return txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		return fn(txCtx)
	})
}

// WithTransactionResult executes fn within a database transaction and returns its result.
// The zero value is returned when the transaction fails.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := WithTransaction(ctx, txMgr, func(txCtx context.Context) error {
		var err error
		result, err = fn(txCtx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
