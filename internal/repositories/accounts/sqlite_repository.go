package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophid/internal/common"
	"github.com/dmitrijs2005/gophid/internal/dbx"
	"github.com/dmitrijs2005/gophid/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
	// now is replaced in tests.
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const sqliteColumns = `id, source_id, native_identity, name, lookup_key, attributes, created_at`

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a *models.Account, sourceID string) (*models.Account, error) {
	attrs, err := encodeAttributes(a.Attributes)
	if err != nil {
		return nil, err
	}

	out := a.Clone()
	out.Linked = nil
	out.SourceID = sourceID
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.CreatedAt = r.now().UTC()

	query := `INSERT INTO accounts (` + sqliteColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		out.ID, out.SourceID, out.NativeIdentity, out.Name, out.LookupKey, attrs, out.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return out, nil
}

func (r *SQLiteRepository) ListBySource(ctx context.Context, sourceID string) ([]*models.Account, error) {
	query := `SELECT ` + sqliteColumns + ` FROM accounts WHERE source_id = ? ORDER BY rowid`
	rows, err := r.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to select accounts: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SQLiteRepository) FindByLookupKey(ctx context.Context, sourceID, key string) (*models.Account, error) {
	query := `SELECT ` + sqliteColumns + ` FROM accounts
			WHERE source_id = ? AND lookup_key = ? ORDER BY rowid LIMIT 1`
	return r.one(ctx, query, sourceID, key)
}

func (r *SQLiteRepository) GetByNativeIdentity(ctx context.Context, sourceID, nativeIdentity string) (*models.Account, error) {
	query := `SELECT ` + sqliteColumns + ` FROM accounts
			WHERE source_id = ? AND native_identity = ? ORDER BY rowid LIMIT 1`
	return r.one(ctx, query, sourceID, nativeIdentity)
}

func (r *SQLiteRepository) one(ctx context.Context, query string, args ...any) (*models.Account, error) {
	a, err := scanSQLite(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	return a, err
}

func scanSQLite(s scanner) (*models.Account, error) {
	a := &models.Account{}
	var raw, created string
	if err := s.Scan(&a.ID, &a.SourceID, &a.NativeIdentity, &a.Name, &a.LookupKey, &raw, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	var err error
	if a.Attributes, err = decodeAttributes([]byte(raw)); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", created, err)
	}
	return a, nil
}
