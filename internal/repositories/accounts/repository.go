// Package accounts is the backing account store: every minted identifier is
// persisted as an account of its target source.
package accounts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophid/internal/models"
)

type Repository interface {
	// CreateAccount stores a under sourceID, assigning ID and CreatedAt.
	CreateAccount(ctx context.Context, a *models.Account, sourceID string) (*models.Account, error)
	// ListBySource returns every account of sourceID in insertion order.
	ListBySource(ctx context.Context, sourceID string) ([]*models.Account, error)
	FindByLookupKey(ctx context.Context, sourceID, key string) (*models.Account, error)
	GetByNativeIdentity(ctx context.Context, sourceID, nativeIdentity string) (*models.Account, error)
}

func encodeAttributes(attrs map[string]string) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to encode attributes: %w", err)
	}
	return string(b), nil
}

func decodeAttributes(raw []byte) (map[string]string, error) {
	attrs := map[string]string{}
	if len(raw) == 0 {
		return attrs, nil
	}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	return attrs, nil
}
