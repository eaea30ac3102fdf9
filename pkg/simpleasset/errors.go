package simpleasset

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrAssetNotFound indicates an asset was not found
	ErrAssetNotFound = errors.New("asset not found")

	// ErrStorageBackendNotFound indicates a storage backend was not found
	ErrStorageBackendNotFound = errors.New("storage backend not found")

	// ErrInvalidPayload indicates an upload payload could not be decoded
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnsupportedMime indicates a payload's mime type is not on the
	// caller's allow-list
	ErrUnsupportedMime = errors.New("unsupported mime type")

	// ErrCompressorRequired indicates compression was requested but no
	// compressor is configured
	ErrCompressorRequired = errors.New("compressor is required")
)

// ValidationError reports a rejected upload. Field carries the originating
// request key when the payload came from a named batch field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IntegrityError reports a reference list that resolved to a missing asset.
// It signals a prior counting or deletion-ordering bug, so callers must not
// swallow it.
type IntegrityError struct {
	AssetID uuid.UUID
	Err     error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("asset reference %s is dangling: %v", e.AssetID, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// AssetError represents an error related to asset operations
type AssetError struct {
	AssetID uuid.UUID
	Op      string
	Err     error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset operation %s failed for asset %s: %v", e.Op, e.AssetID, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
