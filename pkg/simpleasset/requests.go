package simpleasset

import "github.com/google/uuid"

// IngestOptions is the per-call ingestion policy. A nil options pointer on a
// request falls back to the service defaults, so concurrent callers with
// different policies never interfere.
type IngestOptions struct {
	// Compress re-encodes image payloads through the configured compressor.
	Compress bool

	// ConvertJPEG rewrites png/jpeg extensions to jpg and the mime type to
	// image/jpeg before anything else happens.
	ConvertJPEG bool

	// Quality is the re-encode quality factor (1-100).
	Quality int

	// MaxWidth and MaxHeight bound the resize box.
	MaxWidth  int
	MaxHeight int
}

// IngestRequest carries one payload through the ingestion pipeline.
type IngestRequest struct {
	Content   []byte
	MimeType  string
	Extension string
	Size      int64

	// FieldKey names the originating batch field, used to tag validation
	// errors.
	FieldKey string

	// FileName is an optional download filename hint.
	FileName string

	// OwnerID optionally links the asset to an owning record.
	OwnerID *uuid.UUID

	// StorageBackend overrides the service's default blob store.
	StorageBackend string

	// Detached creates the asset with counter 0 instead of 1, for staging
	// flows where no reference is taken yet.
	Detached bool

	// Public and Auth set the visibility flags on the new asset.
	Public bool
	Auth   bool

	// Options overrides the service ingestion defaults for this call.
	Options *IngestOptions
}

// UploadedFile is one decoded item of a multipart submission.
type UploadedFile struct {
	FileName  string
	MimeType  string
	Extension string
	Content   []byte
	Size      int64
}
