package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

type blob struct {
	data     []byte
	mimeType string
	updated  time.Time
}

// Store is an in-memory implementation of the simpleasset.BlobStore
// interface, for tests and throwaway deployments.
type Store struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

// New creates a new in-memory blob store
func New() simpleasset.BlobStore {
	return &Store{blobs: make(map[string]blob)}
}

// Upload writes content under the given key with a default mime type
func (s *Store) Upload(ctx context.Context, key string, reader io.Reader) error {
	return s.UploadWithParams(ctx, reader, simpleasset.UploadParams{
		Key:      key,
		MimeType: "application/octet-stream",
	})
}

// UploadWithParams writes content with an explicit mime type
func (s *Store) UploadWithParams(ctx context.Context, reader io.Reader, params simpleasset.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[params.Key] = blob{data: data, mimeType: params.MimeType, updated: time.Now()}
	return nil
}

// Download streams content for the given key
func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.blobs[key]
	if !exists {
		return nil, errors.New("blob not found")
	}

	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// Delete removes content for the given key
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[key]; !exists {
		return errors.New("blob not found")
	}

	delete(s.blobs, key)
	return nil
}

// GetObjectMeta retrieves metadata for a stored blob
func (s *Store) GetObjectMeta(ctx context.Context, key string) (*simpleasset.ObjectMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.blobs[key]
	if !exists {
		return nil, errors.New("blob not found")
	}

	return &simpleasset.ObjectMeta{
		Key:         key,
		Size:        int64(len(b.data)),
		ContentType: b.mimeType,
		UpdatedAt:   b.updated,
		Metadata:    map[string]string{"mime_type": b.mimeType},
	}, nil
}
