package simpleasset

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-asset library
type Service interface {
	// Ingestion operations
	Ingest(ctx context.Context, req IngestRequest) (*Asset, error)
	IngestFiles(ctx context.Context, fields map[string][]UploadedFile) (map[string][]*Asset, error)
	IngestBase64(ctx context.Context, fields map[string][]string, allowedMimes map[string][]string) (map[string][]*Asset, error)
	IngestRemote(ctx context.Context, fields map[string][]string, allowedMimes map[string][]string) (map[string][]*Asset, error)

	// Asset operations
	GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error)
	UpdateAsset(ctx context.Context, asset *Asset) error
	AttachAsset(ctx context.Context, id uuid.UUID) (int, error)
	GetAssetContent(ctx context.Context, id uuid.UUID) (io.ReadCloser, *AssetContent, error)
	Stats(ctx context.Context) (*AssetStats, error)

	// Reference bookkeeping
	Resolver() *RefResolver
	Collect(ctx context.Context, cs ChangeSet) error

	// Signed URL protocol
	Signer() *Signer

	// Storage backend operations
	RegisterBackend(name string, backend BlobStore)
	GetBackend(name string) (BlobStore, error)
}
