package simpleasset

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata keys stored in Asset.Data.
const (
	dataKeyFileName = "filename"
	dataKeyPublic   = "public"
	dataKeyAuth     = "auth"
)

// Image extensions eligible for compression and JPEG normalization.
const (
	ExtJPG  = "jpg"
	ExtJPEG = "jpeg"
	ExtPNG  = "png"
)

// Asset represents a stored binary object with identity, location, type,
// size and a reference counter. The ID is a UUIDv7: time-sortable and safe
// to hand out as a public token.
type Asset struct {
	ID         uuid.UUID              `json:"id"`
	Path       string                 `json:"path"`
	Mime       string                 `json:"mime"`
	Size       int64                  `json:"size"`
	Data       map[string]interface{} `json:"data,omitempty"`
	StorageKey string                 `json:"storage_key"`
	OwnerID    *uuid.UUID             `json:"owner_id,omitempty"`
	Counter    int                    `json:"counter"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Extension returns the lowercase file extension derived from the storage path.
func (a *Asset) Extension() string {
	ext := path.Ext(a.Path)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// FileName returns the download filename hint: an explicit "filename" data
// entry wins, otherwise the base name of the storage path.
func (a *Asset) FileName() string {
	if name, ok := a.Data[dataKeyFileName].(string); ok && name != "" {
		return name
	}
	return path.Base(a.Path)
}

// SetFileName stores an explicit download filename hint.
func (a *Asset) SetFileName(name string) {
	a.SetDataValue(dataKeyFileName, name)
}

// DataValue returns a single metadata entry, or nil if absent.
func (a *Asset) DataValue(key string) interface{} {
	return a.Data[key]
}

// SetDataValue stores a single metadata entry, allocating the map on first use.
func (a *Asset) SetDataValue(key string, value interface{}) {
	if a.Data == nil {
		a.Data = make(map[string]interface{})
	}
	a.Data[key] = value
}

// IsPublic reports whether the asset may be served without any access check.
func (a *Asset) IsPublic() bool {
	public, _ := a.Data[dataKeyPublic].(bool)
	return public
}

// SetPublic marks the asset as publicly fetchable.
func (a *Asset) SetPublic(public bool) {
	a.SetDataValue(dataKeyPublic, public)
}

// IsAuth reports whether the asset is served behind a live authorization
// check instead of a signed URL.
func (a *Asset) IsAuth() bool {
	auth, _ := a.Data[dataKeyAuth].(bool)
	return auth
}

// SetAuth marks the asset as requiring a live authorization check.
func (a *Asset) SetAuth(auth bool) {
	a.SetDataValue(dataKeyAuth, auth)
}

// HasOwner reports whether the asset belongs to the given owning record.
func (a *Asset) HasOwner(ownerID uuid.UUID) bool {
	return a.OwnerID != nil && *a.OwnerID == ownerID
}

// AssetStats is the aggregate reporting surface: how many assets exist and
// how many bytes they hold.
type AssetStats struct {
	TotalCount int64 `json:"total_count"`
	TotalSize  int64 `json:"total_size"`
}

// AssetContent carries everything an HTTP caller needs to stream an asset:
// the payload plus response metadata.
type AssetContent struct {
	Asset    *Asset
	Mime     string
	Size     int64
	FileName string
}
