package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

type txKey struct{}

// Tx is a top level transaction. Nested WithTx calls share it and are
// isolated with savepoints, depth counts the open ones.
type Tx struct {
	*sqlx.Tx
	ID    string
	depth int
}

// GetTx retrieves the transaction carried by ctx, if any
func GetTx(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	return tx, ok
}

func (tx *Tx) savepoint() string {
	return fmt.Sprintf("sp_%d", tx.depth)
}

// execSavepoint runs a SAVEPOINT statement for the current depth
func (db *DB) execSavepoint(ctx context.Context, tx *Tx, stmt string) error {
	name := tx.savepoint()
	db.logger.Debugw("savepoint", "tx_id", tx.ID, "statement", stmt, "savepoint", name)
	if _, err := tx.ExecContext(ctx, stmt+" "+name); err != nil {
		return ierr.WithError(err).
			WithMessagef("%s %s failed", stmt, name).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (db *DB) begin(ctx context.Context) (context.Context, *Tx, error) {
	if tx, ok := GetTx(ctx); ok {
		tx.depth++
		if err := db.execSavepoint(ctx, tx, "SAVEPOINT"); err != nil {
			tx.depth--
			return ctx, nil, err
		}
		return ctx, tx, nil
	}

	sqlxTx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return ctx, nil, ierr.WithError(err).
			WithMessage("failed to begin transaction").
			Mark(ierr.ErrDatabase)
	}
	tx := &Tx{Tx: sqlxTx, ID: types.GenerateUUID()}
	db.logger.Debugw("transaction started", "tx_id", tx.ID)
	return context.WithValue(ctx, txKey{}, tx), tx, nil
}

func (db *DB) commit(ctx context.Context, tx *Tx) error {
	if tx.depth > 0 {
		defer func() { tx.depth-- }()
		return db.execSavepoint(ctx, tx, "RELEASE SAVEPOINT")
	}
	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithMessage("failed to commit transaction").
			Mark(ierr.ErrDatabase)
	}
	db.logger.Debugw("transaction committed", "tx_id", tx.ID)
	return nil
}

func (db *DB) rollback(ctx context.Context, tx *Tx) error {
	if tx.depth > 0 {
		defer func() { tx.depth-- }()
		return db.execSavepoint(ctx, tx, "ROLLBACK TO SAVEPOINT")
	}
	if err := tx.Rollback(); err != nil {
		return ierr.WithError(err).
			WithMessage("failed to roll back transaction").
			Mark(ierr.ErrDatabase)
	}
	db.logger.Debugw("transaction rolled back", "tx_id", tx.ID)
	return nil
}

// WithTx runs fn inside a transaction. When ctx already carries one, fn runs
// under a savepoint so a failure only undoes its own writes.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, tx, err := db.begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			db.logger.Errorw("panic in transaction", "tx_id", tx.ID, "panic", r)
			_ = db.rollback(ctx, tx)
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		// business failures (conflicts, validation) are expected here and
		// are reported by the caller
		if ierr.IsDatabase(err) {
			db.logger.WithContext(ctx).Errorw("transaction failed", "tx_id", tx.ID, "error", err)
		} else {
			db.logger.WithContext(ctx).Debugw("transaction aborted", "tx_id", tx.ID, "error", err)
		}
		if rbErr := db.rollback(ctx, tx); rbErr != nil {
			return ierr.WithError(err).
				WithMessagef("rollback also failed: %v", rbErr).
				Mark(ierr.ErrDatabase)
		}
		return err
	}

	return db.commit(ctx, tx)
}
