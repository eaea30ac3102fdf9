package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Repository implements simpleasset.Repository using in-memory storage.
//
// WithTx serializes commits against each other but provides no rollback:
// like the blob stores, the memory repository is meant for tests and
// single-process tools, not for durability.
type Repository struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	assets map[uuid.UUID]*simpleasset.Asset
}

// New creates a new in-memory repository
func New() simpleasset.Repository {
	return &Repository{
		assets: make(map[uuid.UUID]*simpleasset.Asset),
	}
}

func (r *Repository) CreateAsset(ctx context.Context, asset *simpleasset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.assets[asset.ID] = copyAsset(asset)
	return nil
}

func (r *Repository) GetAsset(ctx context.Context, id uuid.UUID) (*simpleasset.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, exists := r.assets[id]
	if !exists {
		return nil, simpleasset.ErrAssetNotFound
	}
	return copyAsset(asset), nil
}

func (r *Repository) GetAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]*simpleasset.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simpleasset.Asset, 0, len(ids))
	for _, id := range ids {
		if asset, exists := r.assets[id]; exists {
			result = append(result, copyAsset(asset))
		}
	}
	return result, nil
}

func (r *Repository) UpdateAsset(ctx context.Context, asset *simpleasset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[asset.ID]; !exists {
		return simpleasset.ErrAssetNotFound
	}

	r.assets[asset.ID] = copyAsset(asset)
	return nil
}

func (r *Repository) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[id]; !exists {
		return simpleasset.ErrAssetNotFound
	}

	delete(r.assets, id)
	return nil
}

func (r *Repository) IncrementAssetCounter(ctx context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset, exists := r.assets[id]
	if !exists {
		return 0, simpleasset.ErrAssetNotFound
	}

	asset.Counter++
	return asset.Counter, nil
}

func (r *Repository) DecrementAssetCounter(ctx context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset, exists := r.assets[id]
	if !exists {
		return 0, simpleasset.ErrAssetNotFound
	}

	if asset.Counter > 0 {
		asset.Counter--
	}
	return asset.Counter, nil
}

func (r *Repository) AssetStats(ctx context.Context) (*simpleasset.AssetStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &simpleasset.AssetStats{}
	for _, asset := range r.assets {
		stats.TotalCount++
		stats.TotalSize += asset.Size
	}
	return stats, nil
}

func (r *Repository) WithTx(ctx context.Context, fn func(simpleasset.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	return fn(r)
}

// copyAsset guards against external mutation of stored records, including
// the metadata map.
func copyAsset(asset *simpleasset.Asset) *simpleasset.Asset {
	assetCopy := *asset
	if asset.Data != nil {
		assetCopy.Data = make(map[string]interface{}, len(asset.Data))
		for k, v := range asset.Data {
			assetCopy.Data[k] = v
		}
	}
	if asset.OwnerID != nil {
		owner := *asset.OwnerID
		assetCopy.OwnerID = &owner
	}
	return &assetCopy
}
