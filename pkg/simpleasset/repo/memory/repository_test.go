package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
)

func newAsset(t *testing.T) *simpleasset.Asset {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	return &simpleasset.Asset{
		ID:         id,
		Path:       "2024/01/01/" + id.String() + ".jpg",
		Mime:       "image/jpeg",
		Size:       128,
		StorageKey: "memory",
		Counter:    1,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	t.Run("create and get", func(t *testing.T) {
		asset := newAsset(t)
		require.NoError(t, repo.CreateAsset(ctx, asset))

		got, err := repo.GetAsset(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, asset.ID, got.ID)
		assert.Equal(t, asset.Path, got.Path)
	})

	t.Run("get unknown id", func(t *testing.T) {
		id, err := uuid.NewV7()
		require.NoError(t, err)

		_, err = repo.GetAsset(ctx, id)
		assert.ErrorIs(t, err, simpleasset.ErrAssetNotFound)
	})

	t.Run("update", func(t *testing.T) {
		asset := newAsset(t)
		require.NoError(t, repo.CreateAsset(ctx, asset))

		asset.SetFileName("renamed.jpg")
		require.NoError(t, repo.UpdateAsset(ctx, asset))

		got, err := repo.GetAsset(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed.jpg", got.FileName())
	})

	t.Run("update unknown id", func(t *testing.T) {
		err := repo.UpdateAsset(ctx, newAsset(t))
		assert.ErrorIs(t, err, simpleasset.ErrAssetNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		asset := newAsset(t)
		require.NoError(t, repo.CreateAsset(ctx, asset))
		require.NoError(t, repo.DeleteAsset(ctx, asset.ID))

		_, err := repo.GetAsset(ctx, asset.ID)
		assert.ErrorIs(t, err, simpleasset.ErrAssetNotFound)
	})

	t.Run("delete unknown id", func(t *testing.T) {
		err := repo.DeleteAsset(ctx, newAsset(t).ID)
		assert.ErrorIs(t, err, simpleasset.ErrAssetNotFound)
	})

	t.Run("stored records are isolated from caller mutation", func(t *testing.T) {
		asset := newAsset(t)
		asset.SetFileName("original.jpg")
		require.NoError(t, repo.CreateAsset(ctx, asset))

		asset.SetFileName("mutated.jpg")

		got, err := repo.GetAsset(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, "original.jpg", got.FileName())
	})
}

func TestRepositoryGetAssetsByIDs(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	first := newAsset(t)
	second := newAsset(t)
	require.NoError(t, repo.CreateAsset(ctx, first))
	require.NoError(t, repo.CreateAsset(ctx, second))

	t.Run("returns stored assets", func(t *testing.T) {
		assets, err := repo.GetAssetsByIDs(ctx, []uuid.UUID{first.ID, second.ID})
		require.NoError(t, err)
		assert.Len(t, assets, 2)
	})

	t.Run("missing ids are silently absent", func(t *testing.T) {
		missing, err := uuid.NewV7()
		require.NoError(t, err)

		assets, err := repo.GetAssetsByIDs(ctx, []uuid.UUID{first.ID, missing})
		require.NoError(t, err)
		assert.Len(t, assets, 1)
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assets, err := repo.GetAssetsByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, assets)
	})
}

func TestRepositoryCounters(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	t.Run("increment", func(t *testing.T) {
		asset := newAsset(t)
		require.NoError(t, repo.CreateAsset(ctx, asset))

		counter, err := repo.IncrementAssetCounter(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, counter)
	})

	t.Run("decrement", func(t *testing.T) {
		asset := newAsset(t)
		require.NoError(t, repo.CreateAsset(ctx, asset))

		counter, err := repo.DecrementAssetCounter(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, counter)
	})

	t.Run("decrement floors at zero", func(t *testing.T) {
		asset := newAsset(t)
		asset.Counter = 0
		require.NoError(t, repo.CreateAsset(ctx, asset))

		counter, err := repo.DecrementAssetCounter(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, counter)
	})

	t.Run("counter ops on unknown id", func(t *testing.T) {
		id, err := uuid.NewV7()
		require.NoError(t, err)

		_, err = repo.IncrementAssetCounter(ctx, id)
		assert.ErrorIs(t, err, simpleasset.ErrAssetNotFound)

		_, err = repo.DecrementAssetCounter(ctx, id)
		assert.ErrorIs(t, err, simpleasset.ErrAssetNotFound)
	})
}

func TestRepositoryStats(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	stats, err := repo.AssetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCount)
	assert.Zero(t, stats.TotalSize)

	first := newAsset(t)
	first.Size = 100
	second := newAsset(t)
	second.Size = 50
	require.NoError(t, repo.CreateAsset(ctx, first))
	require.NoError(t, repo.CreateAsset(ctx, second))

	stats, err = repo.AssetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalCount)
	assert.Equal(t, int64(150), stats.TotalSize)
}

func TestRepositoryWithTx(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	asset := newAsset(t)
	err := repo.WithTx(ctx, func(tx simpleasset.Repository) error {
		return tx.CreateAsset(ctx, asset)
	})
	require.NoError(t, err)

	_, err = repo.GetAsset(ctx, asset.ID)
	assert.NoError(t, err)
}
