package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophid/internal/common"
	"github.com/dmitrijs2005/gophid/internal/dbx"
	"github.com/dmitrijs2005/gophid/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const pgColumns = `id, source_id, native_identity, name, lookup_key, attributes, created_at`

func (r *PostgresRepository) CreateAccount(ctx context.Context, a *models.Account, sourceID string) (*models.Account, error) {
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

	query :=
		`INSERT INTO accounts (id, source_id, native_identity, name, lookup_key, attributes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		out.ID, out.SourceID, out.NativeIdentity, out.Name, out.LookupKey, attrs).Scan(&out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}

func (r *PostgresRepository) ListBySource(ctx context.Context, sourceID string) ([]*models.Account, error) {
	query := `SELECT ` + pgColumns + ` FROM accounts
		 WHERE source_id = $1
		 ORDER BY created_at, id
		 `

	rows, err := r.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) FindByLookupKey(ctx context.Context, sourceID, key string) (*models.Account, error) {
	query := `SELECT ` + pgColumns + ` FROM accounts
		 WHERE source_id = $1 AND lookup_key = $2
		 ORDER BY created_at, id
		 LIMIT 1
		 `
	return r.one(ctx, query, sourceID, key)
}

func (r *PostgresRepository) GetByNativeIdentity(ctx context.Context, sourceID, nativeIdentity string) (*models.Account, error) {
	query := `SELECT ` + pgColumns + ` FROM accounts
		 WHERE source_id = $1 AND native_identity = $2
		 ORDER BY created_at, id
		 LIMIT 1
		 `
	return r.one(ctx, query, sourceID, nativeIdentity)
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.Account, error) {
	a, err := scanPostgres(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPostgres(s scanner) (*models.Account, error) {
	a := &models.Account{}
	var raw []byte
	err := s.Scan(&a.ID, &a.SourceID, &a.NativeIdentity, &a.Name, &a.LookupKey, &raw, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if a.Attributes, err = decodeAttributes(raw); err != nil {
		return nil, err
	}
	return a, nil
}
