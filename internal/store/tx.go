package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/franz/spotify-manager/internal/util"
)

var (
	// ErrOutOfScope is returned by mutating operations called while no
	// transaction scope is open
	ErrOutOfScope = errors.New("cannot execute a statement outside of a transaction")

	// ErrNestedTransaction is returned by Begin while a scope is already open
	ErrNestedTransaction = errors.New("a transaction is already active")

	// ErrScopeClosed is returned when committing a scope that already ended
	ErrScopeClosed = errors.New("transaction scope already closed")
)

// Scope is the single open transaction of a Store. Every mutation goes
// through it. A scope ends with Commit or Rollback; Rollback on an ended
// scope is a no-op, so deferring it is always safe.
type Scope struct {
	store *Store
	tx    *sql.Tx
	done  bool
}

// Begin opens the store's transaction scope. Scopes do not nest.
func (s *Store) Begin(ctx context.Context) (*Scope, error) {
	if s.active != nil {
		return nil, ErrNestedTransaction
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	scope := &Scope{store: s, tx: tx}
	s.active = scope
	return scope, nil
}

// Commit makes every statement issued in the scope permanent and releases it
func (sc *Scope) Commit() error {
	if sc.done {
		return ErrScopeClosed
	}
	sc.release()

	if err := sc.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback undoes every statement issued in the scope, DDL included, and
// releases it
func (sc *Scope) Rollback() error {
	if sc.done {
		return nil
	}
	sc.release()

	if err := sc.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

func (sc *Scope) release() {
	sc.done = true
	if sc.store.active == sc {
		sc.store.active = nil
	}
}

// InTransaction reports whether a scope is open
func (s *Store) InTransaction() bool {
	return s.active != nil
}

// Transaction runs fn inside a new scope. The scope is committed when fn
// returns nil. When fn returns an error it is rolled back and that error is
// returned unchanged; when fn panics it is rolled back and the panic
// continues.
func (s *Store) Transaction(ctx context.Context, fn func() error) error {
	scope, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			scope.Rollback()
			panic(p)
		}
	}()

	if err := fn(); err != nil {
		if rbErr := scope.Rollback(); rbErr != nil {
			util.ErrorLog("%v", rbErr)
		}
		return err
	}

	return scope.Commit()
}

// checkScope guards a mutating operation. It returns true when a scope is
// open. Otherwise it fails with ErrOutOfScope, or in loose mode logs and
// returns false with a nil error so the caller silently does nothing.
func (s *Store) checkScope(op string) (bool, error) {
	if s.active != nil {
		return true, nil
	}
	if s.loose {
		util.WarnLog("Ignoring %s outside of a transaction", op)
		return false, nil
	}
	return false, fmt.Errorf("%s: %w", op, ErrOutOfScope)
}

// exec runs a mutating statement in the open scope
func (s *Store) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	ok, err := s.checkScope(op)
	if !ok {
		return nil, err
	}
	return s.active.tx.ExecContext(ctx, query, args...)
}

// execBatch runs one prepared statement per row in the open scope
func (s *Store) execBatch(ctx context.Context, op, query string, n int, row func(i int) []any) error {
	ok, err := s.checkScope(op)
	if !ok || n == 0 {
		return err
	}

	stmt, err := s.active.tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare %s: %w", op, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("failed to %s: %w", op, err)
		}
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader returns the open scope's transaction when there is one, otherwise
// the connection pool. Reads never require a scope.
func (s *Store) reader() queryer {
	if s.active != nil {
		return s.active.tx
	}
	return s.db
}

// Tables returns the names of existing tables sorted by name
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.reader().QueryContext(ctx, `
		SELECT name
		  FROM sqlite_master
		 WHERE type = 'table'
		   AND name NOT LIKE 'sqlite_%'
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	sort.Strings(tables)
	return tables, nil
}

// TableColumns returns a table's column names in declaration order
func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.reader().QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}
