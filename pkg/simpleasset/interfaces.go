package simpleasset

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload writes content under the given key
	Upload(ctx context.Context, key string, reader io.Reader) error

	// UploadWithParams writes content with an explicit mime type
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download streams content for the given key
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes content for the given key
	Delete(ctx context.Context, key string) error

	// GetObjectMeta retrieves storage-level metadata for a key
	GetObjectMeta(ctx context.Context, key string) (*ObjectMeta, error)
}

// UploadParams contains parameters for uploading a blob
type UploadParams struct {
	Key      string
	MimeType string
}

// ObjectMeta contains storage-level metadata about a blob
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// Repository defines the interface for asset persistence.
//
// DecrementAssetCounter and IncrementAssetCounter must be atomic with
// respect to concurrent commits touching the same asset (row-level lock or
// compare-and-swap), and DecrementAssetCounter must never drive a counter
// below zero.
type Repository interface {
	CreateAsset(ctx context.Context, asset *Asset) error
	GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error)
	GetAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Asset, error)
	UpdateAsset(ctx context.Context, asset *Asset) error
	DeleteAsset(ctx context.Context, id uuid.UUID) error

	// IncrementAssetCounter adds one reference and returns the new counter.
	IncrementAssetCounter(ctx context.Context, id uuid.UUID) (int, error)

	// DecrementAssetCounter removes one reference and returns the new counter.
	DecrementAssetCounter(ctx context.Context, id uuid.UUID) (int, error)

	// AssetStats returns the aggregate count and byte total.
	AssetStats(ctx context.Context) (*AssetStats, error)

	// WithTx runs fn against a transactional view of the repository. All
	// writes inside fn commit or roll back as one unit. Implementations
	// without a transaction primitive run fn directly.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// Compressor re-encodes image content. Implementations normalize EXIF
// orientation before resizing.
type Compressor interface {
	// Compress fits the image into the bounding box and re-encodes it with
	// the given quality. The extension selects the output codec.
	Compress(content []byte, extension string, opts CompressParams) ([]byte, error)
}

// CompressParams bound the compressor output.
type CompressParams struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// EventSink is the operator channel for asset lifecycle events. Failures to
// physically reclaim blobs are surfaced here rather than aborting commits.
type EventSink interface {
	// AssetCreated is fired after an asset record is persisted
	AssetCreated(ctx context.Context, asset *Asset) error

	// AssetDeleted is fired after an asset record is removed
	AssetDeleted(ctx context.Context, assetID uuid.UUID) error

	// BlobDeleteFailed is fired when a zero-count asset's blob could not be
	// reclaimed. The record deletion stands; reclamation is retryable
	// out-of-band.
	BlobDeleteFailed(ctx context.Context, backend, key string, err error) error
}

// AssetBearer is the capability an owning-record type implements so the
// collector can walk its asset-bearing fields without knowing the concrete
// type.
type AssetBearer interface {
	// RecordID identifies the owning record.
	RecordID() uuid.UUID

	// AssetColumns lists the asset-bearing field names.
	AssetColumns() []string

	// AssetRefs returns the current reference list for a column, in
	// insertion order.
	AssetRefs(column string) []*AssetRef
}

// FieldChange is the before/after value pair the transaction manager exposes
// for one changed asset-bearing field.
type FieldChange struct {
	Before []uuid.UUID
	After  []uuid.UUID
}

// RecordChange describes one mutated owning record: its identity and the
// change pair per asset-bearing field. For deletions only Before is set.
type RecordChange struct {
	RecordID uuid.UUID
	Fields   map[string]FieldChange
}

// ChangeSet is the commit-time view the collector consumes: records
// scheduled for deletion and records with changed fields. It must reflect
// the same change sets the transaction manager computed, not a second read.
type ChangeSet struct {
	Deletions []RecordChange
	Updates   []RecordChange
}
