package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	requestsPairKeyConstraint    = "requests_pair_key_key"
	chatsDirectPairKeyConstraint = "chats_direct_pair_key_key"
	chatMembersChatIDForeignKey  = "chat_members_chat_id_fkey"
	uniqueViolation              = "23505"
	foreignKeyViolation          = "23503"
	lockPairQuery                = "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))"
)

// Scope is satisfied by both *sqlx.DB and *sqlx.Tx.
type Scope interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type PostgresRegistry struct {
	db    *sqlx.DB
	scope Scope
	inTx  bool
}

func NewPostgresRegistry(db *sqlx.DB) *PostgresRegistry {
	return &PostgresRegistry{
		db:    db,
		scope: db,
	}
}

func (r *PostgresRegistry) Atomic(ctx context.Context, fn AtomicFunc) (err error) {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("rollback caused by error: \"%w\" failed: %v", err, rbErr)
			}
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(&PostgresRegistry{
		db:    r.db,
		scope: tx,
		inTx:  true,
	})
	return err
}

func (r *PostgresRegistry) LockPair(ctx context.Context, pairKey string) error {
	if !r.inTx {
		return ErrNotInTransaction
	}
	if _, err := r.scope.ExecContext(ctx, lockPairQuery, pairKey); err != nil {
		return fmt.Errorf("lock pair: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Requests() RequestStore {
	return NewRequestRepository(r.scope)
}

func (r *PostgresRegistry) Chats() ChatStore {
	return NewChatRepository(r.scope)
}

func (r *PostgresRegistry) Messages() MessageStore {
	return NewMessageRepository(r.scope)
}

func pgError(err error) *pq.Error {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	pgErr := pgError(err)
	return pgErr != nil && string(pgErr.Code) == uniqueViolation && pgErr.Constraint == constraint
}

func isForeignKeyViolation(err error, constraint string) bool {
	pgErr := pgError(err)
	return pgErr != nil && string(pgErr.Code) == foreignKeyViolation && pgErr.Constraint == constraint
}
