package simpleasset

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// The persisted column payload for an asset-bearing field is an ordered JSON
// array of asset identifiers. Order is insertion order and is meaningful:
// "first" accessors (primary avatar, cover image) depend on it.

// EncodeAssetIDs serializes an ordered asset list to its column payload.
func EncodeAssetIDs(assets []*Asset) ([]byte, error) {
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID.String())
	}
	return json.Marshal(ids)
}

// EncodeRefs serializes an ordered reference list to its column payload.
func EncodeRefs(refs []*AssetRef) ([]byte, error) {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID().String())
	}
	return json.Marshal(ids)
}

// DecodeAssetRefs parses a column payload into lazy handles. Empty or absent
// payloads decode to an empty list, never nil.
func DecodeAssetRefs(data []byte, res *RefResolver) ([]*AssetRef, error) {
	refs := []*AssetRef{}
	if len(data) == 0 {
		return refs, nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("malformed asset reference list: %w", err)
	}

	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed asset reference %q: %w", raw, err)
		}
		refs = append(refs, NewAssetRef(id, res))
	}

	return refs, nil
}

// AppendRef adds a reference to a field list, idempotently: attaching an
// asset already present leaves the list unchanged.
func AppendRef(refs []*AssetRef, ref *AssetRef) []*AssetRef {
	if ContainsRef(refs, ref.ID()) {
		return refs
	}
	return append(refs, ref)
}

// ContainsRef reports whether the list already references the given asset.
func ContainsRef(refs []*AssetRef, id uuid.UUID) bool {
	for _, r := range refs {
		if r.ID() == id {
			return true
		}
	}
	return false
}

// RefIDs returns the identifiers of a reference list in order.
func RefIDs(refs []*AssetRef) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID())
	}
	return ids
}

// AssetRef is a lazy handle: it carries only the identifier until the asset
// is actually needed. Resolution goes through a shared RefResolver so large
// reference lists load in one batch instead of one by one.
type AssetRef struct {
	id  uuid.UUID
	res *RefResolver
}

// NewAssetRef creates a lazy handle bound to a resolver.
func NewAssetRef(id uuid.UUID, res *RefResolver) *AssetRef {
	return &AssetRef{id: id, res: res}
}

// RefTo creates a lazy handle for an already-loaded asset, seeding the
// resolver cache.
func RefTo(asset *Asset, res *RefResolver) *AssetRef {
	res.seed(asset)
	return &AssetRef{id: asset.ID, res: res}
}

// ID returns the referenced asset identifier without loading anything.
func (r *AssetRef) ID() uuid.UUID {
	return r.id
}

// Load resolves the handle. A dangling identifier is a data-integrity error:
// it means counting or deletion ordering went wrong earlier, so it is
// surfaced, never skipped.
func (r *AssetRef) Load(ctx context.Context) (*Asset, error) {
	asset, err := r.res.lookup(ctx, r.id)
	if err != nil {
		return nil, &IntegrityError{AssetID: r.id, Err: err}
	}
	return asset, nil
}

// ResolveAll loads every handle in the list, batching the repository lookup.
// The first dangling reference fails the whole call with an IntegrityError.
func ResolveAll(ctx context.Context, refs []*AssetRef) ([]*Asset, error) {
	if len(refs) == 0 {
		return []*Asset{}, nil
	}

	if err := refs[0].res.Prime(ctx, RefIDs(refs)); err != nil {
		return nil, err
	}

	assets := make([]*Asset, 0, len(refs))
	for _, r := range refs {
		asset, err := r.Load(ctx)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

// RefResolver resolves asset identifiers through a repository with a
// process-local cache, so decoding a field never forces a content fetch and
// repeated loads of the same asset hit the repository once.
type RefResolver struct {
	repo Repository

	mu    sync.Mutex
	cache map[uuid.UUID]*Asset
}

// NewRefResolver creates a resolver backed by the given repository.
func NewRefResolver(repo Repository) *RefResolver {
	return &RefResolver{
		repo:  repo,
		cache: make(map[uuid.UUID]*Asset),
	}
}

// Prime batch-fetches the given identifiers into the cache. Identifiers that
// do not resolve are left absent; the error surfaces on Load.
func (r *RefResolver) Prime(ctx context.Context, ids []uuid.UUID) error {
	missing := r.uncached(ids)
	if len(missing) == 0 {
		return nil
	}

	assets, err := r.repo.GetAssetsByIDs(ctx, missing)
	if err != nil {
		return fmt.Errorf("failed to resolve asset references: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range assets {
		r.cache[a.ID] = a
	}
	return nil
}

// Invalidate drops an identifier from the cache, for callers that know the
// asset changed or was deleted underneath them.
func (r *RefResolver) Invalidate(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, id)
}

func (r *RefResolver) uncached(ids []uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := r.cache[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func (r *RefResolver) seed(asset *Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[asset.ID] = asset
}

func (r *RefResolver) lookup(ctx context.Context, id uuid.UUID) (*Asset, error) {
	r.mu.Lock()
	cached, ok := r.cache[id]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	asset, err := r.repo.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	r.seed(asset)
	return asset, nil
}
