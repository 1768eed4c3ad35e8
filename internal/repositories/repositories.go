package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// DBTX is satisfied by both [*sql.DB] and [*sql.Tx].
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// inTx runs fn inside a transaction. When db is already a transaction fn joins it.
func inTx(ctx context.Context, db DBTX, fn func(DBTX) error) error {
	beginner, ok := db.(txBeginner)
	if !ok {
		return fn(db)
	}

	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// syncPivot makes the rows of table owned by ownerID match relatedIDs exactly.
func syncPivot(ctx context.Context, db DBTX, table, ownerCol, relatedCol string, ownerID int64, relatedIDs []int64) error {
	ids := lo.Uniq(relatedIDs)
	keep, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode %s ids: %w", table, err)
	}

	return inTx(ctx, db, func(tx DBTX) error {
		del := fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND %s NOT IN (SELECT value FROM json_each(?))`, table, ownerCol, relatedCol)
		if _, err := tx.ExecContext(ctx, del, ownerID, string(keep)); err != nil {
			return fmt.Errorf("failed to detach %s: %w", table, err)
		}

		ins := fmt.Sprintf(`INSERT INTO %s (%s, %s, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`, table, ownerCol, relatedCol)
		stmt, err := tx.PrepareContext(ctx, ins)
		if err != nil {
			return fmt.Errorf("failed to prepare %s insert: %w", table, err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, ownerID, id, now); err != nil {
				return fmt.Errorf("failed to attach %s %d: %w", table, id, err)
			}
		}
		return nil
	})
}

func marshalStrings(v []string) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}

func unmarshalStrings(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
