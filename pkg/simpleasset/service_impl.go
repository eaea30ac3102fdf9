package simpleasset

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Defaults for the ingestion policy, matching the compressor's sweet spot
// for avatar/cover style uploads.
const (
	defaultQuality   = 75
	defaultMaxWidth  = 720
	defaultMaxHeight = 1280
)

// service implements the Service interface
type service struct {
	repository     Repository
	blobStores     map[string]BlobStore
	defaultBackend string
	compressor     Compressor
	eventSink      EventSink
	signer         *Signer
	collector      *Collector
	resolver       *RefResolver
	httpClient     *http.Client
	logger         *slog.Logger
	ingestDefaults IngestOptions
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore adds a blob storage backend. The first registered backend
// becomes the default unless WithDefaultBackend overrides it.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
		if s.defaultBackend == "" {
			s.defaultBackend = name
		}
	}
}

// WithDefaultBackend selects which registered blob store ingestion writes to
func WithDefaultBackend(name string) Option {
	return func(s *service) {
		s.defaultBackend = name
	}
}

// WithCompressor sets the image compressor for the service
func WithCompressor(c Compressor) Option {
	return func(s *service) {
		s.compressor = c
	}
}

// WithEventSink sets the operator event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithSigner sets the signed-URL signer, carrying the application-wide
// default secret
func WithSigner(signer *Signer) Option {
	return func(s *service) {
		s.signer = signer
	}
}

// WithHTTPClient sets the client used for remote-URL ingestion
func WithHTTPClient(client *http.Client) Option {
	return func(s *service) {
		s.httpClient = client
	}
}

// WithLogger sets the structured logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithDefaultIngestOptions replaces the service-wide ingestion defaults
func WithDefaultIngestOptions(opts IngestOptions) Option {
	return func(s *service) {
		s.ingestDefaults = opts
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores: make(map[string]BlobStore),
		ingestDefaults: IngestOptions{
			Compress:    true,
			ConvertJPEG: true,
			Quality:     defaultQuality,
			MaxWidth:    defaultMaxWidth,
			MaxHeight:   defaultMaxHeight,
		},
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.signer == nil {
		s.signer = NewSigner("")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	s.resolver = NewRefResolver(s.repository)
	s.collector = NewCollector(s.repository, s.GetBackend, s.eventSink, s.logger)

	return s, nil
}

// Ingestion operations

func (s *service) Ingest(ctx context.Context, req IngestRequest) (*Asset, error) {
	opts := s.ingestDefaults
	if req.Options != nil {
		opts = *req.Options
	}

	ext := strings.ToLower(req.Extension)
	mimeType := req.MimeType

	// JPEG normalization
	if opts.ConvertJPEG {
		switch ext {
		case ExtPNG, ExtJPEG:
			ext = ExtJPG
		}
		if ext == ExtJPG {
			mimeType = "image/jpeg"
		}
	}

	content := req.Content
	if opts.Compress && isImageExtension(ext) {
		if s.compressor == nil {
			return nil, ErrCompressorRequired
		}
		compressed, err := s.compressor.Compress(content, ext, CompressParams{
			MaxWidth:  opts.MaxWidth,
			MaxHeight: opts.MaxHeight,
			Quality:   opts.Quality,
		})
		if err != nil {
			// An unprocessable image is indistinguishable from an invalid
			// upload from the caller's point of view.
			return nil, &ValidationError{
				Field: req.FieldKey,
				Err:   fmt.Errorf("invalid file content: %w", err),
			}
		}
		content = compressed
	}

	backendName := req.StorageBackend
	if backendName == "" {
		backendName = s.defaultBackend
	}
	backend, err := s.GetBackend(backendName)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate asset id: %w", err)
	}

	now := time.Now().UTC()
	key := storagePath(now, id, ext)

	size := req.Size
	if size == 0 {
		size = int64(len(req.Content))
	}

	// Write the blob before the record exists. A failed write creates
	// nothing; a failed record-create leaves an orphaned blob, which is
	// bounded because keys are unique and never reused.
	if err := backend.UploadWithParams(ctx, bytes.NewReader(content), UploadParams{
		Key:      key,
		MimeType: mimeType,
	}); err != nil {
		return nil, &StorageError{Backend: backendName, Key: key, Op: "upload", Err: err}
	}

	counter := 1
	if req.Detached {
		counter = 0
	}

	asset := &Asset{
		ID:         id,
		Path:       key,
		Mime:       mimeType,
		Size:       size,
		StorageKey: backendName,
		OwnerID:    req.OwnerID,
		Counter:    counter,
		CreatedAt:  now,
	}
	if req.FileName != "" {
		asset.SetFileName(req.FileName)
	}
	if req.Public {
		asset.SetPublic(true)
	}
	if req.Auth {
		asset.SetAuth(true)
	}

	if err := s.repository.CreateAsset(ctx, asset); err != nil {
		return nil, &AssetError{AssetID: id, Op: "create", Err: err}
	}

	if err := s.eventSink.AssetCreated(ctx, asset); err != nil {
		s.logger.Error("asset created event failed", "asset_id", id, "err", err)
	}

	return asset, nil
}

func (s *service) IngestFiles(ctx context.Context, fields map[string][]UploadedFile) (map[string][]*Asset, error) {
	result := make(map[string][]*Asset, len(fields))
	for key, files := range fields {
		for _, file := range files {
			asset, err := s.Ingest(ctx, IngestRequest{
				Content:   file.Content,
				MimeType:  file.MimeType,
				Extension: file.Extension,
				Size:      file.Size,
				FileName:  file.FileName,
				FieldKey:  key,
			})
			if err != nil {
				// Best-effort batch: a bad item never aborts its siblings.
				s.logger.Error("file upload failed", "field", key, "err", err)
				continue
			}
			result[key] = append(result[key], asset)
		}
	}
	return result, nil
}

func (s *service) IngestBase64(ctx context.Context, fields map[string][]string, allowedMimes map[string][]string) (map[string][]*Asset, error) {
	result := make(map[string][]*Asset, len(fields))
	for key, payloads := range fields {
		for _, payload := range payloads {
			content, err := decodeBase64Payload(payload)
			if err != nil {
				return nil, &ValidationError{Field: key, Err: fmt.Errorf("%w: %v", ErrInvalidPayload, err)}
			}

			mimeType := http.DetectContentType(content)
			if err := checkAllowedMime(key, mimeType, allowedMimes); err != nil {
				return nil, err
			}

			asset, err := s.Ingest(ctx, IngestRequest{
				Content:   content,
				MimeType:  mimeType,
				Extension: extensionForMime(mimeType),
				Size:      int64(len(content)),
				FieldKey:  key,
			})
			if err != nil {
				return nil, err
			}
			result[key] = append(result[key], asset)
		}
	}
	return result, nil
}

func (s *service) IngestRemote(ctx context.Context, fields map[string][]string, allowedMimes map[string][]string) (map[string][]*Asset, error) {
	result := make(map[string][]*Asset, len(fields))
	for key, links := range fields {
		for _, link := range links {
			content, err := s.fetchRemote(ctx, link)
			if err != nil {
				s.logger.Error("link upload failed", "field", key, "url", link, "err", err)
				continue
			}

			mimeType := http.DetectContentType(content)
			if err := checkAllowedMime(key, mimeType, allowedMimes); err != nil {
				s.logger.Error("link upload failed", "field", key, "url", link, "err", err)
				continue
			}

			asset, err := s.Ingest(ctx, IngestRequest{
				Content:   content,
				MimeType:  mimeType,
				Extension: extensionForMime(mimeType),
				Size:      int64(len(content)),
				FieldKey:  key,
			})
			if err != nil {
				s.logger.Error("link upload failed", "field", key, "url", link, "err", err)
				continue
			}
			result[key] = append(result[key], asset)
		}
	}
	return result, nil
}

func (s *service) fetchRemote(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Asset operations

func (s *service) GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error) {
	return s.repository.GetAsset(ctx, id)
}

func (s *service) UpdateAsset(ctx context.Context, asset *Asset) error {
	if err := s.repository.UpdateAsset(ctx, asset); err != nil {
		return &AssetError{AssetID: asset.ID, Op: "update", Err: err}
	}
	return nil
}

func (s *service) AttachAsset(ctx context.Context, id uuid.UUID) (int, error) {
	counter, err := s.repository.IncrementAssetCounter(ctx, id)
	if err != nil {
		return 0, &AssetError{AssetID: id, Op: "attach", Err: err}
	}
	return counter, nil
}

func (s *service) GetAssetContent(ctx context.Context, id uuid.UUID) (io.ReadCloser, *AssetContent, error) {
	asset, err := s.repository.GetAsset(ctx, id)
	if err != nil {
		return nil, nil, &AssetError{AssetID: id, Op: "content", Err: err}
	}

	backend, err := s.GetBackend(asset.StorageKey)
	if err != nil {
		return nil, nil, err
	}

	reader, err := backend.Download(ctx, asset.Path)
	if err != nil {
		return nil, nil, &StorageError{Backend: asset.StorageKey, Key: asset.Path, Op: "download", Err: err}
	}

	return reader, &AssetContent{
		Asset:    asset,
		Mime:     asset.Mime,
		Size:     asset.Size,
		FileName: asset.FileName(),
	}, nil
}

func (s *service) Stats(ctx context.Context) (*AssetStats, error) {
	return s.repository.AssetStats(ctx)
}

// Reference bookkeeping

func (s *service) Resolver() *RefResolver {
	return s.resolver
}

func (s *service) Collect(ctx context.Context, cs ChangeSet) error {
	return s.collector.Collect(ctx, cs)
}

// Signed URL protocol

func (s *service) Signer() *Signer {
	return s.signer
}

// Storage backend operations

func (s *service) RegisterBackend(name string, backend BlobStore) {
	s.blobStores[name] = backend
	if s.defaultBackend == "" {
		s.defaultBackend = name
	}
}

func (s *service) GetBackend(name string) (BlobStore, error) {
	backend, exists := s.blobStores[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, name)
	}
	return backend, nil
}

// Helpers

func isImageExtension(ext string) bool {
	switch ext {
	case ExtJPG, ExtJPEG, ExtPNG:
		return true
	}
	return false
}

// storagePath derives the unique blob key. The date prefix exists for
// operational sharding and browsability only; uniqueness comes from the id.
func storagePath(t time.Time, id uuid.UUID, ext string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s.%s", t.Format("2006/01/02"), id, ext))
}

// decodeBase64Payload accepts raw base64 or a data-URI
// ("data:image/png;base64,....").
func decodeBase64Payload(payload string) ([]byte, error) {
	parts := strings.SplitN(payload, ",", 2)
	raw := parts[len(parts)-1]
	return base64.StdEncoding.DecodeString(raw)
}

func checkAllowedMime(field, mimeType string, allowed map[string][]string) error {
	if allowed == nil {
		return nil
	}
	list, ok := allowed[field]
	if !ok {
		return nil
	}
	if slices.Contains(list, mimeType) {
		return nil
	}
	return &ValidationError{Field: field, Err: fmt.Errorf("%w: %s", ErrUnsupportedMime, mimeType)}
}

// Common sniffed mime types map straight to their canonical extension; the
// system mime database covers the rest.
var mimeExtensions = map[string]string{
	"image/jpeg":      ExtJPEG,
	"image/png":       ExtPNG,
	"image/gif":       "gif",
	"image/webp":      "webp",
	"application/pdf": "pdf",
	"text/plain":      "txt",
}

func extensionForMime(mimeType string) string {
	// DetectContentType may append parameters ("text/plain; charset=utf-8")
	if base, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = base
	}
	if ext, ok := mimeExtensions[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}
