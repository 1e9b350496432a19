// Package dedup filters previously persisted postings out of a fetched batch.
package dedup

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/model"
)

// Store is the subset of the persistence layer dedup needs.
type Store interface {
	// ExistingIdentifiers returns every external ID and URL already
	// persisted for a source, as one membership set.
	ExistingIdentifiers(ctx context.Context, source model.Source) (map[string]struct{}, error)
}

// Deduplicator drops items whose external ID or URL is already persisted
// for their source. The identifier set is loaded once per call and treated
// as a snapshot: two items sharing an identifier within the same batch both
// pass through, and the store's unique constraint catches the second insert.
type Deduplicator struct {
	store Store
}

// New creates a Deduplicator backed by store.
func New(store Store) *Deduplicator {
	return &Deduplicator{store: store}
}

// Filter returns the items not yet persisted for source, preserving input
// order. The store lookup is the only I/O; the filtering itself is pure
// set membership.
func (d *Deduplicator) Filter(ctx context.Context, source model.Source, items []model.Item) ([]model.Item, error) {
	if len(items) == 0 {
		return []model.Item{}, nil
	}

	existing, err := d.store.ExistingIdentifiers(ctx, source)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: load existing identifiers")
	}

	fresh := make([]model.Item, 0, len(items))
	for _, it := range items {
		if _, ok := existing[it.ExternalID]; ok && it.ExternalID != "" {
			zap.L().Debug("dedup: known external id",
				zap.String("source", string(source)),
				zap.String("external_id", it.ExternalID),
			)
			continue
		}
		if _, ok := existing[it.URL]; ok && it.URL != "" {
			zap.L().Debug("dedup: known url",
				zap.String("source", string(source)),
				zap.String("url", it.URL),
			)
			continue
		}
		fresh = append(fresh, it)
	}

	if removed := len(items) - len(fresh); removed > 0 {
		zap.L().Info("dedup: dropped known items",
			zap.String("source", string(source)),
			zap.Int("fetched", len(items)),
			zap.Int("fresh", len(fresh)),
			zap.Int("removed", removed),
		)
	}

	return fresh, nil
}
