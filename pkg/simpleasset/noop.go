package simpleasset

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful when no operator channel is wired up, and for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// AssetCreated does nothing and returns nil
func (n *NoopEventSink) AssetCreated(ctx context.Context, asset *Asset) error {
	return nil
}

// AssetDeleted does nothing and returns nil
func (n *NoopEventSink) AssetDeleted(ctx context.Context, assetID uuid.UUID) error {
	return nil
}

// BlobDeleteFailed does nothing and returns nil
func (n *NoopEventSink) BlobDeleteFailed(ctx context.Context, backend, key string, err error) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other
// action. It is the default operator channel for single-process deployments.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// AssetCreated logs the asset creation event
func (l *LoggingEventSink) AssetCreated(ctx context.Context, asset *Asset) error {
	l.logger.Info("asset created",
		"asset_id", asset.ID, "path", asset.Path, "mime", asset.Mime, "size", asset.Size)
	return nil
}

// AssetDeleted logs the asset deletion event
func (l *LoggingEventSink) AssetDeleted(ctx context.Context, assetID uuid.UUID) error {
	l.logger.Info("asset deleted", "asset_id", assetID)
	return nil
}

// BlobDeleteFailed logs the storage leak so an operator can retry the
// reclamation out-of-band
func (l *LoggingEventSink) BlobDeleteFailed(ctx context.Context, backend, key string, err error) error {
	l.logger.Error("asset blob not reclaimed", "backend", backend, "path", key, "err", err)
	return nil
}
